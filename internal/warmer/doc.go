// Package warmer implements the auto-cache engine: sitemap collection, site
// enumeration, the bounded run loop, cache freshness probing, and the rotating
// run log written into the cache directory.
package warmer
