// Package docmanagement is a Go client for the document management HTTP API.
//
// Upload a file, wait for text extraction, then search:
//
//	client, _ := docmanagement.New("http://localhost:8080",
//	    docmanagement.WithTimeout(10*time.Second),
//	)
//	doc, _ := client.Documents().Upload(ctx, docmanagement.UploadRequest{
//	    Filename: "invoice.png",
//	    Content:  f,
//	})
//	text, err := client.Documents().Text(ctx, doc.ID)
//	if errors.Is(err, docmanagement.ErrTextNotReady) {
//	    // extraction still running
//	}
//	page, _ := client.Search(ctx, docmanagement.SearchRequest{Query: "total", Fuzzy: true})
package docmanagement
