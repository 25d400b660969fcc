// Package favorites reads the notifications page: the pending favorites count
// and the favorite rows of the current batch. Parsing is pure and idempotent
// over a fixed page source.
package favorites

import (
	"fmt"

	errs "favthanker/pkg/errors"
	"favthanker/pkg/models"
	"favthanker/pkg/site"
	"favthanker/pkg/web"
)

// PendingCount returns the number of outstanding favorites. A missing count
// anchor means there are none; an anchor whose text is not a number is a
// parsing error.
func PendingCount(page *web.Page) (int, error) {
	anchor, err := page.AnchorByHref(site.PendingCountHref)
	if err != nil {
		if errs.Is(err, errs.ErrorTypeNotFound) {
			return 0, nil
		}
		return 0, err
	}

	n, ok := site.ParsePendingCount(anchor.Text)
	if !ok {
		return 0, errs.New(errs.ErrorTypeParsing, "pending count",
			fmt.Sprintf("unexpected count anchor text %q", anchor.Text))
	}
	return n, nil
}

// Parse returns the favorites listed on the page in page order. An empty
// result means the notifications are exhausted.
func Parse(page *web.Page) []models.Favorite {
	rows := site.FavoriteRows(page.Body())
	favs := make([]models.Favorite, 0, len(rows))
	for _, row := range rows {
		favs = append(favs, models.Favorite{
			RecipientName:       row.User,
			RecipientProfileURL: page.Resolve(row.UserLink),
			ArtworkTitle:        row.Title,
			ArtworkURL:          page.Resolve(row.ArtLink),
		})
	}
	return favs
}

// Group aggregates favorites per recipient in first-encounter order. The
// favorite counts always sum to len(favs).
func Group(favs []models.Favorite) []models.PendingRecipient {
	index := make(map[string]int, len(favs))
	var out []models.PendingRecipient
	for _, f := range favs {
		if i, ok := index[f.RecipientName]; ok {
			out[i].FavoriteCount++
			continue
		}
		index[f.RecipientName] = len(out)
		out = append(out, models.PendingRecipient{Name: f.RecipientName, FavoriteCount: 1})
	}
	return out
}
