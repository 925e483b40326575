// Package export writes resolved locations as a CSV table and an HTML map.
package export

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yourorg/ssidmap/pkg/types"
)

// AnonymisedLabel replaces names that look personal.
const AnonymisedLabel = "AnonymisedNetwork"

// DefaultCenter is used when there are no points to centre on.
var DefaultCenter = [2]float64{51.5074, -0.1278}

var (
	//go:embed map.html
	mapHTML string

	mapTemplate = template.Must(template.New("map").Parse(mapHTML))

	personalKeywords = []string{"home", "wifi", "guest", "personal", "family"}
)

// Anonymise returns a copy of locs with personal-looking names replaced.
// Coordinates are left untouched.
func Anonymise(locs []types.Location) []types.Location {
	out := make([]types.Location, len(locs))
	for i, loc := range locs {
		loc.SSID = AnonymiseName(loc.SSID)
		out[i] = loc
	}
	return out
}

// AnonymiseName masks name if it contains a personal keyword, ignoring case.
func AnonymiseName(name string) string {
	lower := strings.ToLower(name)
	for _, kw := range personalKeywords {
		if strings.Contains(lower, kw) {
			return AnonymisedLabel
		}
	}
	return name
}

// WriteCSV writes ssid,lat,lon rows in input order.
func WriteCSV(path string, locs []types.Location) error {
	if path == "" {
		return errors.New("csv path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"ssid", "lat", "lon"})
	for _, loc := range locs {
		_ = w.Write([]string{loc.SSID, formatCoord(loc.Lat), formatCoord(loc.Lon)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

type mapPoint struct {
	SSID    string  `json:"ssid"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address,omitempty"`
}

type mapData struct {
	Title     string
	Points    []mapPoint
	CenterLat float64
	CenterLon float64
	Zoom      int
}

// RenderMap writes a self-contained Leaflet page with one marker per
// location, centred on their mean.
func RenderMap(path, title string, locs []types.Location) error {
	if path == "" {
		return errors.New("map path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data := mapData{Title: title, Points: make([]mapPoint, 0, len(locs)), Zoom: 6}
	data.CenterLat, data.CenterLon = Center(locs)
	for _, loc := range locs {
		data.Points = append(data.Points, mapPoint{SSID: loc.SSID, Lat: loc.Lat, Lon: loc.Lon, Address: loc.Address})
	}
	if len(locs) > 0 {
		data.Zoom = 12
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := mapTemplate.Execute(f, data); err != nil {
		_ = f.Close()
		return fmt.Errorf("render map: %w", err)
	}
	return f.Close()
}

// Center returns the mean coordinate of locs, or DefaultCenter.
func Center(locs []types.Location) (float64, float64) {
	if len(locs) == 0 {
		return DefaultCenter[0], DefaultCenter[1]
	}
	var lat, lon float64
	for _, l := range locs {
		lat += l.Lat
		lon += l.Lon
	}
	n := float64(len(locs))
	return lat / n, lon / n
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
