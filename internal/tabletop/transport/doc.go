// Package transport moves point clouds in and pipeline outputs out.
//
// Frames arrive over MQTT (one encoded cloud per message) or as chunked UDP
// datagrams, and can be replayed from a PCAP capture of those datagrams.
// Per-frame outputs are published back over MQTT: clouds in the l1cloud
// wire format, markers and detected objects as msgpack.
package transport
