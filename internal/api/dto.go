package api

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notepress/internal/models"
	"github.com/starford/notepress/internal/publisher"
	"github.com/starford/notepress/internal/source"
	"github.com/starford/notepress/internal/taxonomy"
)

// Publisher is the publishing surface the HTTP layer needs.
type Publisher interface {
	Publish(ctx context.Context, opts publisher.Options) (*publisher.Report, error)
	Taxonomy() (tags, categories *taxonomy.Index, err error)
	ListPosts() ([]models.PostMetadata, error)
	ReadPost(name string) ([]byte, error)
}

// PublishRequest is the request body for publishing a note. Tags and
// categories are names; excerpt is only used for notes without a header.
type PublishRequest struct {
	SourcePath string   `json:"source_path" example:"/vault/notes/My Note.md" validate:"required"`
	Title      string   `json:"title,omitempty" example:"My Note"`
	Tags       []string `json:"tags,omitempty" example:"go,notes"`
	Categories []string `json:"categories,omitempty" example:"Dev"`
	Excerpt    string   `json:"excerpt,omitempty"`
	Push       bool     `json:"push"`
}

// Validate checks the request fields.
func (r PublishRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SourcePath, validation.Required, validation.By(func(any) error {
			if !source.HasExtension(r.SourcePath, source.DefaultExtensions) {
				return validation.NewError("validation_source_ext", "must be a .md or .markdown file")
			}
			return nil
		})),
		validation.Field(&r.Title, validation.Length(0, 200)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, 64))),
		validation.Field(&r.Categories, validation.Each(validation.Required, validation.Length(1, 64))),
	)
}

// TaxonomyResponse lists tags and categories by descending use.
type TaxonomyResponse struct {
	Tags       []taxonomy.Entry `json:"tags" validate:"required"`
	Categories []taxonomy.Entry `json:"categories" validate:"required"`
}

// PostListResponse wraps the post listing.
type PostListResponse struct {
	Posts []models.PostMetadata `json:"posts" validate:"required"`
}

// PublishResponse is the publish report.
type PublishResponse = publisher.Report

func nonNilEntries(e []taxonomy.Entry) []taxonomy.Entry {
	if e == nil {
		return []taxonomy.Entry{}
	}
	return e
}
