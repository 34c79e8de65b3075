package zxid

import "fmt"

/*
A ZXID orders every transaction the server applies. It has two parts, an epoch and a counter, packed
into one signed 64-bit number: the high order 32 bits hold the epoch and the low order 32 bits hold
the counter. Comparing two zxids as plain integers therefore compares (epoch, counter) pairs.

Within an epoch the server simply increments the zxid to obtain the next one. When the counter half
is exhausted the increment carries into the epoch, which keeps the ordering intact. A server that is
restored from an earlier state starts a new epoch with NextEpoch so that it never reuses a zxid.
See https://zookeeper.apache.org/doc/r3.4.13/zookeeperInternals.html#sc_guaranteesPropertiesDefinitions
*/
type ZXID int64

// Zero is the zxid of a namespace that has never been written.
const Zero ZXID = 0

func NewZXID(epoch int32, counter uint32) ZXID {
	// The counter is unsigned so it never sign-extends into the epoch bits.
	return ZXID(int64(epoch)<<32 | int64(counter))
}

func (z ZXID) Epoch() int32 {
	return int32(z >> 32)
}

func (z ZXID) Counter() uint32 {
	return uint32(z & 0xFFFFFFFF)
}

// NextEpoch returns the first zxid of the epoch after the one z belongs to.
func (z ZXID) NextEpoch() ZXID {
	return NewZXID(z.Epoch()+1, 0)
}

func (z ZXID) String() string {
	return fmt.Sprintf("0x%x", int64(z))
}
