// Package icmp sends ICMP Echo Requests to an IPv4 host and reads the replies.
//
// # Sockets
//
// Two socket modes are supported. ModeDatagram opens an unprivileged ping
// socket (SOCK_DGRAM, IPPROTO_ICMP). On Linux it requires the caller's group
// to be inside the ping_group_range sysctl:
//
//	sysctl -w net.ipv4.ping_group_range="0 65535"
//
// The Linux kernel strips the IPv4 header from datagram replies and rewrites
// the echo identifier, so the TTL is read from an IP_TTL control message
// instead. ModeRaw opens a SOCK_RAW socket, needs root or CAP_NET_RAW, and
// returns every datagram with its IPv4 header.
//
// # Sessions
//
// A Session moves through OPEN, CONNECTED and CLOSED:
//
//	s, err := icmp.Open(icmp.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if err := s.Connect(addr); err != nil {
//		return err
//	}
//	if _, err := s.SendEcho(0, seq, data); err != nil {
//		return err
//	}
//	res, err := s.ReceiveReply(5 * time.Second)
//
// # Packets
//
// EchoBuilder writes Echo Requests into a fixed buffer. Finalize computes
// the RFC 1071 checksum and returns an immutable Packet. DecodeReply gives a
// read-only view over a received datagram.
package icmp
