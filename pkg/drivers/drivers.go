// Package drivers pulls in every instrument family so that a single
// blank import registers all of them. The registry panics at load time
// if any family breaks the capability contract, so a binary importing
// this package cannot start with a malformed driver.
package drivers

import (
	_ "labdevices/pkg/drivers/ando"
	_ "labdevices/pkg/drivers/appliedmotion"
	_ "labdevices/pkg/drivers/granvillephillips"
	_ "labdevices/pkg/drivers/keysight"
	_ "labdevices/pkg/drivers/kuhneelectronic"
	_ "labdevices/pkg/drivers/newport"
	_ "labdevices/pkg/drivers/pfeiffer"
	_ "labdevices/pkg/drivers/rohdeschwarz"
	_ "labdevices/pkg/drivers/srs"
	_ "labdevices/pkg/drivers/thorlabs"
)
