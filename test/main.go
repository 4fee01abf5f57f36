package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	credential "github.com/pilacorp/go-credential-trust"
	"github.com/pilacorp/go-credential-trust/credential/common/model"
	"github.com/pilacorp/go-credential-trust/credential/common/processor"
	"github.com/pilacorp/go-credential-trust/credential/common/schema"
	"github.com/pilacorp/go-credential-trust/credential/vc"
	"github.com/pilacorp/go-credential-trust/credential/vp"
	"github.com/pilacorp/go-credential-trust/did"
)

const (
	degreeSchemaID = "https://schemas.example.com/degree.json"
	degreeSchema   = `{
		"type": "object",
		"required": ["degree"],
		"properties": {
			"degree": {"type": "string"},
			"gpa": {"type": "number", "minimum": 0, "maximum": 4}
		}
	}`
)

// Walks a credential through issuance, presentation and revocation using
// the in-memory engine.
func main() {
	ctx := context.Background()

	schemas, err := schema.NewValidator(schema.WithSchema(degreeSchemaID, degreeSchema))
	if err != nil {
		log.Fatalf("Failed to load schema: %v", err)
	}
	engine, err := credential.NewEngine(
		credential.WithStatusRegistry("https://status.example.com", nil),
		credential.WithSchemaValidator(schemas),
		credential.WithCanonicalizer(processor.JCS{}),
	)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	fmt.Println("-- Example 1: Generate issuer and holder DIDs --")
	issuer, err := engine.NewDID(ctx, did.KeyTypeEd25519)
	if err != nil {
		log.Fatalf("Failed to generate issuer DID: %v", err)
	}
	holder, err := engine.NewDID(ctx, did.KeyTypeSecp256k1)
	if err != nil {
		log.Fatalf("Failed to generate holder DID: %v", err)
	}
	fmt.Println("issuer:", issuer.DID)
	fmt.Println("holder:", holder.DID)

	fmt.Println("\n-- Example 2: Issue a credential with a revocation entry --")
	degree, err := engine.Credentials.IssueCredential(ctx, vc.IssueRequest{
		IssuerDID:      issuer.DID,
		SubjectDID:     holder.DID,
		CredentialType: "UniversityDegreeCredential",
		Claims:         map[string]interface{}{"degree": "BSc Computer Science", "gpa": 3.7},
		SchemaID:       degreeSchemaID,
		IncludeStatus:  true,
	})
	if err != nil {
		log.Fatalf("Failed to issue credential: %v", err)
	}
	printJSON(degree)

	fmt.Println("\n-- Example 3: Reject claims that break the schema --")
	_, err = engine.Credentials.IssueCredential(ctx, vc.IssueRequest{
		IssuerDID:      issuer.DID,
		SubjectDID:     holder.DID,
		CredentialType: "UniversityDegreeCredential",
		Claims:         map[string]interface{}{"gpa": 9},
		SchemaID:       degreeSchemaID,
	})
	fmt.Println("issuance error:", err)

	fmt.Println("\n-- Example 4: Verify the credential --")
	result := engine.Credentials.VerifyCredential(ctx, degree)
	fmt.Printf("valid=%v status=%v errors=%v\n", result.IsValid, result.Status, result.Errors)

	fmt.Println("\n-- Example 5: Present it to a verifier --")
	presentation, err := engine.Presentations.CreatePresentation(ctx, vp.CreateRequest{
		HolderDID:   holder.DID,
		Credentials: []*model.VerifiableCredential{degree},
		Challenge:   "99612b24-63d9-11ea-b99f-4f66f3e4f81a",
		Domain:      "verifier.example.com",
		ProofType:   model.EcdsaSecp256k1Signature2019,
	})
	if err != nil {
		log.Fatalf("Failed to create presentation: %v", err)
	}
	printJSON(presentation)

	expect := vp.ValidateOptions{
		ExpectedChallenge: "99612b24-63d9-11ea-b99f-4f66f3e4f81a",
		ExpectedDomain:    "verifier.example.com",
		TrustedIssuers:    []string{issuer.DID},
	}
	validation := engine.Presentations.ValidatePresentation(ctx, presentation, expect)
	fmt.Printf("valid=%v warnings=%v\n", validation.IsValid, validation.Warnings)
	for _, claims := range validation.Claims {
		fmt.Printf("credential %d claims: %v\n", claims.Index, claims.Claims)
	}

	fmt.Println("\n-- Example 6: A replayed presentation fails the challenge --")
	replay := engine.Presentations.ValidatePresentation(ctx, presentation, vp.ValidateOptions{ExpectedChallenge: "another-nonce"})
	fmt.Printf("valid=%v errors=%v\n", replay.IsValid, replay.Errors)

	fmt.Println("\n-- Example 7: Revoke and verify again --")
	if err := engine.Credentials.RevokeCredential(ctx, degree.ID()); err != nil {
		log.Fatalf("Failed to revoke credential: %v", err)
	}
	result = engine.Credentials.VerifyCredential(ctx, degree)
	fmt.Printf("valid=%v status=%v errors=%v\n", result.IsValid, result.Status, result.Errors)

	validation = engine.Presentations.ValidatePresentation(ctx, presentation, expect)
	fmt.Printf("presentation valid=%v credential 0 errors=%v\n", validation.IsValid, validation.CredentialErrors(0))
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal: %v", err)
	}
	fmt.Println(string(out))
}
