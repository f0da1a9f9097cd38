// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package heavy

import (
	"github.com/dinari-network/dinari-blockchain/pkg/core/database"
	log "github.com/sirupsen/logrus"
)

// DriverName is the unique identifier for the heavy driver.
const DriverName = "heavy"

type driver struct{}

func (d *driver) Open(path string) (database.DB, error) {
	return NewDatabase(path)
}

func (d *driver) Name() string {
	return DriverName
}

func init() {
	if err := database.Register(&driver{}); err != nil {
		log.Panic(err)
	}
}
