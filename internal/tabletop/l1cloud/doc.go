// Package l1cloud owns Layer 1 (Cloud) of the tabletop data model.
//
// Responsibilities: the colored point and cloud types shared by every
// later layer, packed-RGB helpers, and the binary wire codec used by the
// transports.
// Key types: Point, Cloud, Frame.
//
// Dependency rule: L1 depends on nothing else in internal/tabletop.
package l1cloud
