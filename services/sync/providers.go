package sync

import (
	"fmt"

	"ratingo/models"
	"ratingo/services/tmdb"
)

// providerEntries flattens one region's category buckets into storable rows.
func providerEntries(rp *tmdb.RegionProviders) []models.WatchProviderEntry {
	if rp == nil {
		return nil
	}
	var entries []models.WatchProviderEntry
	add := func(category string, list []tmdb.ProviderEntry) {
		for _, p := range list {
			entries = append(entries, models.WatchProviderEntry{
				Region:     rp.Region,
				ProviderID: p.ProviderID,
				Name:       p.Name,
				LogoPath:   p.LogoPath,
				Category:   category,
				Rank:       p.Priority,
			})
		}
	}
	add(models.ProviderCategoryFlatrate, rp.Flatrate)
	add(models.ProviderCategoryFree, rp.Free)
	add(models.ProviderCategoryAds, rp.Ads)
	add(models.ProviderCategoryRent, rp.Rent)
	add(models.ProviderCategoryBuy, rp.Buy)
	return entries
}

// mergeProviders combines provider listings from several regions without
// duplicates. The key covers region, provider and category so a provider
// carrying an item in both regions keeps one row per region.
func mergeProviders(lists ...[]models.WatchProviderEntry) []models.WatchProviderEntry {
	seen := make(map[string]bool)
	var merged []models.WatchProviderEntry
	for _, list := range lists {
		for _, e := range list {
			key := fmt.Sprintf("%s:%d:%s", e.Region, e.ProviderID, e.Category)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, e)
		}
	}
	return merged
}
