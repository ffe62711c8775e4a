// Package influxdb records renderer identification telemetry in InfluxDB.
//
// Every identification becomes one renderer_identification point tagged with
// the profile name, the lookup method (address, user_agent, header, none)
// and the outcome (matched, forced, none), so dashboards can show which
// renderers are active and how often the fallbacks fire.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteIdentification(influxdb.Identification{
//	    Profile: "XBMC", Method: "user_agent", Outcome: influxdb.OutcomeMatched,
//	})
//
// Writes are batched according to influxdb.batch_size and
// influxdb.flush_interval. Errors from batched writes are delivered to the
// SetOnError callback; connection and health check errors are returned.
package influxdb
