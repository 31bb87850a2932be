package wireguard

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// LinkChecker reports whether a network interface exists and is up.
type LinkChecker interface {
	LinkUp(name string) (bool, error)
}

// NetlinkChecker asks the kernel through netlink.
type NetlinkChecker struct{}

// LinkUp returns false without error when the link does not exist.
func (NetlinkChecker) LinkUp(name string) (bool, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("get link %s: %w", name, err)
	}
	return link.Attrs().Flags&net.FlagUp != 0, nil
}
