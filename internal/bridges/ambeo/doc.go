// Package ambeo implements the MQTT bridge for Sennheiser AMBEO soundbars.
//
// The bridge owns one device client and media player per configured
// soundbar. It publishes state changes found by polling, and executes
// commands that arrive over MQTT or through the local API.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐   HTTP
//	│  Home automation│   MQTT   │  AMBEO Bridge   │◄────────► Soundbar(s)
//	│   controller    │◄────────►│   (this pkg)    │
//	└─────────────────┘          └─────────────────┘
//
// # Lifecycle
//
// Each soundbar is set up in the background. An unreachable soundbar stays
// pending and setup is retried; an unsupported model fails for good. Once
// ready, the soundbar's entities are published to its discovery topic and
// it is polled on an interval and after every accepted command. When
// BridgeOptions.History is set, every ack is also written to the command
// history.
//
// # Topics
//
//	ambeo/state/{soundbar}      retained state, published on change
//	ambeo/discovery/{soundbar}  retained entity list
//	ambeo/command/{soundbar}    commands in
//	ambeo/ack/{soundbar}        command acknowledgements
//	ambeo/request/{request_id}  requests in
//	ambeo/response/{request_id} request responses
//	ambeo/health/{bridge}       retained bridge health and last will
//
// # Capability Gating
//
// Polled features and discovery entities come from one table keyed by
// feature name, and commands reuse those keys. A feature is offered only
// when the soundbar's family has the capability. Subwoofer features also
// need a subwoofer to have been found at setup.
package ambeo
