// Package websocket pushes analysis events to browser clients.
//
// A Hub owns the connected clients and fans out messages from Broadcast,
// which never blocks the caller: a full queue drops the message and a client
// that cannot keep up is disconnected. Handler upgrades /ws requests with
// gorilla/websocket and runs each client's read and write pumps.
package websocket
