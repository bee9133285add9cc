package escrow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"crowdfund/internal/domain"
)

// Field limits, in runes after NFC normalization.
const (
	maxCampaignIDBytes = 64
	maxNameRunes       = 50
	maxDescRunes       = 500
	maxLocationRunes   = 100
	maxMetrics         = 5
	maxMetricRunes     = 50
	maxMediaURIs       = 5
	maxMediaURIRunes   = 100
)

// CreateCampaignInput carries the creator-chosen fields of a new campaign.
type CreateCampaignInput struct {
	ID           string
	Name         string
	Description  string
	Category     domain.Category
	TargetAmount uint64
	Location     string
	Metrics      []string
	MediaURIs    []string
}

func validateCampaignID(id string) error {
	if strings.TrimSpace(id) == "" || len(id) > maxCampaignIDBytes {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCampaignID, id)
	}
	return nil
}

// normalize returns in with text fields NFC-normalized and trimmed, or the
// first validation error.
func normalize(in CreateCampaignInput) (CreateCampaignInput, error) {
	if in.TargetAmount == 0 || in.TargetAmount > domain.MaxAmount {
		return in, fmt.Errorf("%w: %d", domain.ErrInvalidTarget, in.TargetAmount)
	}

	in.Name = clean(in.Name)
	if in.Name == "" || utf8.RuneCountInString(in.Name) > maxNameRunes {
		return in, domain.ErrInvalidTitle
	}
	in.Description = clean(in.Description)
	if in.Description == "" || utf8.RuneCountInString(in.Description) > maxDescRunes {
		return in, domain.ErrInvalidDescription
	}

	category, err := domain.ParseCategory(string(in.Category))
	if err != nil {
		return in, err
	}
	in.Category = category

	in.Location = clean(in.Location)
	if utf8.RuneCountInString(in.Location) > maxLocationRunes {
		return in, fmt.Errorf("%w: location", domain.ErrInvalidMetadata)
	}
	if in.Metrics, err = cleanList(in.Metrics, maxMetrics, maxMetricRunes); err != nil {
		return in, fmt.Errorf("%w: metrics", err)
	}
	if in.MediaURIs, err = cleanList(in.MediaURIs, maxMediaURIs, maxMediaURIRunes); err != nil {
		return in, fmt.Errorf("%w: media uris", err)
	}
	return in, nil
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func cleanList(items []string, maxItems, maxRunes int) ([]string, error) {
	if len(items) > maxItems {
		return nil, domain.ErrInvalidMetadata
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = clean(item)
		if item == "" || utf8.RuneCountInString(item) > maxRunes {
			return nil, domain.ErrInvalidMetadata
		}
		out = append(out, item)
	}
	return out, nil
}
