package rtps

import (
	"fmt"
	"net"
)

// LocatorKind selects the transport a Locator addresses.
type LocatorKind int32

const (
	LocatorKindInvalid  LocatorKind = -1
	LocatorKindReserved LocatorKind = 0
	LocatorKindUDPv4    LocatorKind = 1
	LocatorKindUDPv6    LocatorKind = 2
)

// Locator is an RTPS transport address: kind, port, and a 16-byte address.
// UDPv4 addresses occupy the last four bytes.
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte
}

// NewUDPv4Locator builds a UDPv4 locator from an IP and port.
func NewUDPv4Locator(ip net.IP, port uint32) Locator {
	loc := Locator{Kind: LocatorKindUDPv4, Port: port}
	if v4 := ip.To4(); v4 != nil {
		copy(loc.Address[12:], v4)
	}
	return loc
}

// LocatorFromAddr converts a net.UDPAddr.
func LocatorFromAddr(addr *net.UDPAddr) Locator {
	return NewUDPv4Locator(addr.IP, uint32(addr.Port))
}

// IP extracts the address as a net.IP.
func (l Locator) IP() net.IP {
	if l.Kind == LocatorKindUDPv4 {
		return net.IP(l.Address[12:])
	}
	return net.IP(l.Address[:])
}

func (l Locator) String() string {
	return fmt.Sprintf("%s:%d", l.IP(), l.Port)
}

// Well-known DDS port mapping parameters, DDS-RTPS 2.3 section 9.6.1.
const (
	portBase       = 7400 // PB
	domainIDGain   = 250  // DG
	participantGen = 2    // PG
	offsetD0       = 0
	offsetD1       = 10
	offsetD2       = 1
	offsetD3       = 11
)

// SPDPMulticastAddress is the standard discovery multicast group.
var SPDPMulticastAddress = net.IPv4(239, 255, 0, 1)

// SPDPWellKnownMulticastPort returns PB + DG*domainID + d0.
func SPDPWellKnownMulticastPort(domainID uint16) uint32 {
	return uint32(portBase + domainIDGain*int(domainID) + offsetD0)
}

// SPDPWellKnownUnicastPort returns PB + DG*domainID + d1 + PG*participantID.
func SPDPWellKnownUnicastPort(domainID, participantID uint16) uint32 {
	return uint32(portBase + domainIDGain*int(domainID) + offsetD1 + participantGen*int(participantID))
}

// UserTrafficMulticastPort returns PB + DG*domainID + d2.
func UserTrafficMulticastPort(domainID uint16) uint32 {
	return uint32(portBase + domainIDGain*int(domainID) + offsetD2)
}

// UserTrafficUnicastPort returns PB + DG*domainID + d3 + PG*participantID.
func UserTrafficUnicastPort(domainID, participantID uint16) uint32 {
	return uint32(portBase + domainIDGain*int(domainID) + offsetD3 + participantGen*int(participantID))
}

// SPDPMulticastLocator is the locator the participant reader proxy is
// seeded with at discovery startup.
func SPDPMulticastLocator(domainID uint16) Locator {
	return NewUDPv4Locator(SPDPMulticastAddress, SPDPWellKnownMulticastPort(domainID))
}
