// Package domain models Cambridge, MA road-incident, citation, weather and
// sunrise/sunset records and the pure functions that normalize, classify and
// join them.
//
// # Data Sources
//
// Incident reports come from the Cambridge Police Department open data
// exports, split into vintages whose headers drifted over time. Citations
// and daily weather observations (Weather Underground history for KBOS) are
// single CSV files. Sunrise and sunset times come from the U.S. Naval
// Observatory "Rise and Set for the Sun" tables, one text file per year.
//
// # Source Conventions
//
// Incident vintages:
//
//	2010-2013  "Date Time" = "01/05/2010 08:15:00 AM"; street column is
//	           misspelled "Steet Name"; "Location", "Day Of Week".
//	2014       "Date Time" = "3/14/2014 17:45"; "Street Name", "LOCATION",
//	           "Day of Week".
//
// Each vintage is a [Schema]: a per-field list of accepted header names bound
// once against the file header. The first non-empty value wins.
//
// Local times:
//
//	Incident, citation and weather times are wall-clock times in the source
//	zone (America/New_York). They are converted to UTC on parse. Weather
//	dates ("EST" column, "2012-3-7") are local midnight.
//
// Weather cells:
//
//	Temperatures are required integers. Visibility is an integer, 0 when the
//	cell is empty. PrecipitationIn is inches; "T" is a trace amount and is
//	recorded as 0 with PrecipitationTrace set. Events is a dash-delimited
//	list such as "Fog-Rain-Thunderstorm".
//
// Astronomical tables:
//
//	Nine header lines, then one line per day of month. Month m (0-based)
//	occupies columns 4+11*m .. 4+11*m+9 as "HHMM HHMM" (rise, set). USNO
//	tables are printed in standard time all year, so times are read in a
//	fixed UTC-5 zone. Blank cells mark days a month does not have.
//
// # Taxonomies
//
// Object types reduce to [Category]; an incident's accident type is the
// non-Auto category of an Auto/other pair. Charge descriptions map verbatim
// to a [CitationLabel] through a partial table. Unmapped values are nil, not
// errors.
//
// # ID Generation
//
// Record IDs are deterministic SHA-256 hashes of family|source|row|date plus
// key fields, so a rerun over the same inputs yields the same IDs. See
// [generateID].
package domain
