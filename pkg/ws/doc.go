// Package ws is the websocket transport for the presence layer. It upgrades
// authenticated HTTP requests, bridges client commands (join, leave,
// message, typing) to the room service, and pushes presence events back to
// the client.
//
// Each connection runs one read loop and one write loop. Outbound events go
// through a bounded buffer; a client that cannot keep up overflows its
// buffer and only that connection is closed.
//
// # Usage
//
//	handler, err := ws.NewHandler(manager, roomSvc,
//		ws.WithSendBuffer(128),
//		ws.WithOriginPatterns("app.example.com"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", handler.Router())
//	http.ListenAndServe(":8080", r)
//
// Clients connect to /ws?token=<jwt> and exchange JSON frames:
//
//	→ {"action":"join","room_id":"ride-42"}
//	→ {"action":"message","room_id":"ride-42","text":"on my way"}
//	← {"type":"message","room_id":"ride-42","user_id":"driver-7","at":"...","data":{"text":"on my way"}}
package ws
