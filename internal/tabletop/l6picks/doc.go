// Package l6picks turns labelled clusters into pick-and-place requests.
//
// Dependency rule: l6picks may import l1cloud and shared geometry only.
package l6picks
