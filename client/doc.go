// Package client provides a minimal client for the scriptport wire
// protocol.
//
// The protocol is one command per connection: the client connects, writes
// the command bytes, and reads the response until the server closes the
// connection. Responses are short human-readable strings.
//
// Usage:
//
//	resp, err := client.Send("127.0.0.1:7777", "x = 41")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(resp)
package client
