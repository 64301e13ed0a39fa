// Package directory provides a client for an HTTP channel directory.
//
// A channel directory publishes the list of streams a radio service offers
// and the "now playing" text of each stream. The API is plain JSON over HTTP:
//
//	GET {base}/channels                    -> {"channels": [Channel, ...]}
//	GET {base}/channels/{id}               -> Channel
//	GET {base}/channels/{id}/now-playing   -> {"channel_id": "...", "text": "..."}
//
// Failures are reported as {"error": {"code": 404, "message": "..."}}.
//
// # Quick Start
//
//	client, err := directory.NewClient(directory.Config{
//	    BaseURL:  "https://radio.example.com/api/",
//	    Username: "listener",
//	    Password: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	channels, err := client.Channels(ctx)
//
// # Error Handling
//
// API failures are returned as *Error:
//
//	_, err := client.Channel(ctx, "hiphop")
//	if errors.Is(err, directory.ErrNotFound) {
//	    // unknown channel
//	}
//
//	var dirErr *directory.Error
//	if errors.As(err, &dirErr) && dirErr.Temporary() {
//	    // try again later
//	}
//
// # Retries
//
// Requests are sent through go-retryablehttp, which retries connection
// errors and 5xx responses with exponential backoff. RetryMax in Config
// controls the number of attempts.
package directory
