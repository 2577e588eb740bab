//go:build !gstreamer

package sink

import "errors"

func newDefaultDriver() (Driver, error) { return NewNull(), nil }

func newGstDriver() (Driver, error) {
	return nil, errors.New("gstreamer build tag not enabled")
}
