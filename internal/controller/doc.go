// Package controller forwards the bridge's changes to the field controller
// over WebSocket.
//
// Each change becomes one set_state message carrying the device's code
// block and new state:
//
//	{"method":"set_state","type":"*","majordomo":"bridge",
//	 "data":{"codice":{"nome":"tapparella cucina sud","porta":"tapparella"},"stato":40}}
//
// Link keeps the connection open, reconnecting after a fixed delay, and
// never blocks a caller: messages wait in a bounded queue and are dropped
// with ErrQueueFull when it is full. Controller replies are logged.
package controller
