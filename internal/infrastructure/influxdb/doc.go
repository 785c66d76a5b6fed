// Package influxdb keeps a history of device values in InfluxDB.
//
// Every change the bridge makes, and every state the field reports, becomes
// one point in the device_value measurement:
//
//	device_value,device=tapparella_sud,kind=blind,room=cucina,source=voice value=40
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceValue("cucina", "tapparella_sud", "blind", 40, "voice")
//
// Writes are batched according to batch_size and flush_interval and never
// block the caller. Write failures arrive through SetOnError.
//
// DeviceHistory reads the points of one device back, oldest first.
package influxdb
