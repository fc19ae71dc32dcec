// Package domain models glacial lake outburst flood (GLOF) monitoring data for
// Juneau, Alaska.
//
// # Data Sources
//
// Water levels come from two USGS gages read through the NWIS instantaneous
// values service (parameter 00065, gage height in feet):
//
//	15052500    Mendenhall Lake at Juneau
//	1505248590  Suicide Basin near Juneau
//
// Historical outburst events come from a CSV maintained alongside the public
// dashboard (FloodEvents.csv). Active alerts come from the NWS alerts API for
// forecast zone AKZ025.
//
// # Flood Stages
//
// A lake level in feet is classified into one of five stages. Ranges are
// half-open [low, high) and the last stage is unbounded:
//
//	No Flood Risk         [0, 8)
//	Action Stage          [8, 9)
//	Minor Flood Stage     [9, 10)
//	Moderate Flood Stage  [10, 14)
//	Major Flood Stage     [14, ∞)
//
// Negative levels are a sensor fault ("No Water Level Data Available"). USGS
// reports -999999 when a gage has no value. An absent or unparseable level is
// unknown and callers render a placeholder.
//
// # Inundation Overlays
//
// Each integer level from 8 to 20 ft has a precomputed Mapbox vector tileset.
// Layers follow a fixed numbering offset:
//
//	N = 64 + (feet - 8)     layer "flood<N>-fill", source "flood<N>"
//
// Levels 14 through 18 also have a barrier variant that models flood extent
// behind deployed HESCO barriers. Requesting the barrier variant elsewhere
// forces it off.
//
// # Event Columns
//
// Raw CSV headers use gage jargon ("Crest Stage D.S. Gage (ft)"). They are
// renamed to plain language and bookkeeping columns are dropped. A lone "-"
// marks a missing value and is normalized to an empty string. The source is
// ordered newest first, so the first record is the most recent event.
//
// All tables above live in [Catalog], which has a built-in default and can be
// loaded from YAML so tests and deployments can swap them.
package domain
