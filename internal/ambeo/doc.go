// Package ambeo implements a client for the local HTTP control API of
// Sennheiser AMBEO soundbars.
//
// Three hardware generations expose the same logical controls under
// different path namespaces:
//
//   - Popcorn: AMBEO Soundbar Plus and Mini on the 2024 firmware
//   - Plus: the Plus on older firmware, without cast inputs or subwoofer
//   - Espresso: AMBEO Soundbar Max
//
// Each generation is one concrete Client. Operations that never differ
// (identity, volume, mute, playback, reboot) live in a shared base;
// operations a generation lacks return an error wrapping ErrUnsupported.
//
// # Wire Protocol
//
// Every request is a GET below http://{host}:{port}/api/:
//
//	getData?path=player:volume&roles=@all&_nocache=1718000000000
//	setData?path=player:volume&roles=value&value={"type":"i32_","i32_":30}&_nocache=...
//	getRows?path=ui:/inputs&roles=@all&from=0&to=10&_nocache=...
//
// Writes carry a typed envelope whose tag appears twice:
// {"type":"bool_","bool_":true}. The _nocache nonce is strictly
// increasing per transport.
//
// # Capabilities
//
// Optional controls are gated on Client.HasCapability. The capability
// set is fixed per generation and never changes for a client.
//
// # Setup
//
//	client, err := ambeo.NewClient(ctx, ambeo.Options{Host: "192.168.1.40"})
//	switch {
//	case ambeo.IsRetryable(err):
//	    // device not reachable yet, try again later
//	case err != nil:
//	    // unsupported model, give up
//	}
//
// # Thread Safety
//
// Clients are safe for concurrent use. Concurrent calls are independent
// requests; no ordering is implied between them.
package ambeo
