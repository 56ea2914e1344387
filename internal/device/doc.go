// Package device keeps the registry of soundbars the bridge manages.
//
// A Soundbar record is written when the bridge finishes setting a soundbar
// up: the identity it read from the device, the endpoint it reached it on,
// the client family the factory chose and the capabilities that family
// reported. Health is updated from the poll loop. Live playback state is not
// stored here; it is read from the device and published over MQTT.
//
// Registry wraps a Repository with a read-through cache. The SQLite
// repository expects the soundbars table from the migrations package.
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
package device
