// Package client is a Go SDK for the blockledger HTTP API served by ledgerd.
//
// Reads are public:
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ov, err := c.Overview(ctx)
//	fmt.Println(ov.Length, ov.Head)
//
// When the daemon has server.auth_secret set, appends need a writer token
// (mint one with 'ledger token'):
//
//	c, _ := client.New(base, client.WithBearerToken(token))
//	res, err := c.Append(ctx, 42)
//	if errors.Is(err, client.ErrInvalidPayload) {
//	    // payload outside the 32-bit range
//	}
//	fmt.Println(res.Previous, "->", res.Digest)
//
// Verify reports the daemon's own integrity check; it does not re-hash blocks
// on the client side.
package client
