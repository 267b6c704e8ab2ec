//go:build windows

package commands

import "errors"

func startDetached([]string) (int, error) {
	return 0, errors.New("--daemon is not supported on Windows; run remotefs as a service instead")
}
