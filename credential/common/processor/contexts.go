package processor

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/piprate/json-gold/ld"
)

var (
	//go:embed contexts/credentials_v1.jsonld
	credentialsV1 []byte
	//go:embed contexts/status_list_2021_v1.jsonld
	statusList2021V1 []byte
)

// embeddedContexts are served without touching the network.
var embeddedContexts = map[string][]byte{
	"https://www.w3.org/2018/credentials/v1":  credentialsV1,
	"https://w3id.org/vc/status-list/2021/v1": statusList2021V1,
}

// seedEmbedded adds the embedded contexts to loader.
func seedEmbedded(loader *ld.CachingDocumentLoader) error {
	for url, raw := range embeddedContexts {
		doc, err := ld.DocumentFromReader(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("failed to parse embedded context %s: %w", url, err)
		}
		loader.AddDocument(url, doc)
	}
	return nil
}
