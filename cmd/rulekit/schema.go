package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/bnema/rulekit/internal/models"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the content-blocker rule document",
	Args:  cobra.NoArgs,
	// needs no config
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	r := new(jsonschema.Reflector)
	schema := r.Reflect(&[]models.ContentRule{})

	schema.Title = "WebKit content-blocker rules"
	schema.Description = "Rule document produced by rulekit"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}
