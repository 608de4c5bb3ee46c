// Package seo renders sitemap.xml and robots.txt for the public site.
package seo

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"explorer/internal/geo"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []entry  `xml:"url"`
}

type entry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Sitemap renders the sitemap for every province, district and city page of the site at baseURL.
func Sitemap(baseURL string, provinces []geo.Province, now time.Time) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")
	lastMod := now.UTC().Format(time.RFC3339)
	add := func(set *urlSet, path, freq, priority string) {
		set.URLs = append(set.URLs, entry{Loc: base + path, LastMod: lastMod, ChangeFreq: freq, Priority: priority})
	}

	set := &urlSet{XMLNS: sitemapNS}
	add(set, "/", "weekly", "1.0")
	add(set, "/provinces", "weekly", "0.9")
	for _, p := range provinces {
		provincePath := "/province/" + url.PathEscape(p.ID)
		add(set, provincePath, "weekly", "0.8")
		for _, d := range p.Districts {
			districtPath := provincePath + "/district/" + url.PathEscape(d.ID)
			add(set, districtPath, "weekly", "0.7")
			for _, city := range d.Cities {
				add(set, districtPath+"/city/"+url.PathEscape(city), "weekly", "0.6")
			}
		}
	}
	add(set, "/experience", "daily", "0.8")

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render sitemap: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Robots renders robots.txt pointing crawlers at the sitemap and away from private pages.
func Robots(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	return fmt.Sprintf(`User-agent: *
Allow: /
Disallow: /auth
Disallow: /add-experience
Disallow: /edit-experience
Disallow: /profile

# Sitemap
Sitemap: %s/sitemap.xml

# Crawl-delay
Crawl-delay: 1
`, base)
}
