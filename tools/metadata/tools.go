package metadata

import (
	"context"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/schema"
	tooltypes "github.com/slighter12/vault-mcp-go/tools/types"
)

func Definitions() []tooltypes.Definition {
	return []tooltypes.Definition{
		GetFileMetadata(),
		GetFileLinks(),
	}
}

func GetFileMetadata() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "get_file_metadata",
		Description: "Returns cached frontmatter, tags, headings, links and embeds of a document",
		Schema: schema.New("Get File Metadata",
			schema.Required("path", schema.String, "Document path; .md is assumed without an extension"),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			path, err := tooltypes.MarkdownPath(args, "path")
			if err != nil {
				return nil, err
			}
			return p.Metadata(ctx, path)
		},
	}
}

func GetFileLinks() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "get_file_links",
		Description: "Returns outgoing and incoming links of a document",
		Schema: schema.New("Get File Links",
			schema.Required("path", schema.String, "Document path; .md is assumed without an extension"),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			path, err := tooltypes.MarkdownPath(args, "path")
			if err != nil {
				return nil, err
			}
			return p.Links(ctx, path)
		},
	}
}
