// Package domain models the GHCN-Daily climate records, USFS fire layers, and
// H3 hexagon records that make up the wildfire-risk dataset.
//
// # Data Sources
//
// Station metadata and daily observations come from the NOAA Global Historical
// Climatology Network - Daily (GHCN-D) mirror at
// https://noaa-ghcn-pds.s3.amazonaws.com. Fire occurrences and perimeters come
// from the USFS National Fire Occurrence Point and Fire Perimeter feature layers,
// exported as GeoJSON.
//
// # GHCN-D Conventions
//
// Station file (ghcnd-stations.txt), fixed width, 1-based columns:
//
//	 1-11  ID          e.g. "USC00042319"; the first two characters are the FIPS country code
//	13-20  LATITUDE    decimal degrees
//	22-30  LONGITUDE   decimal degrees
//	32-37  ELEVATION   meters, -999.9 when missing
//	39-40  STATE       US/Canadian state or province code
//	42-71  NAME
//	73-75  GSN FLAG
//	77-79  HCN/CRN FLAG
//	81-85  WMO ID
//
// Yearly daily files (csv.gz/by_year/YYYY.csv.gz) have no header row:
//
//	ID,YYYYMMDD,ELEMENT,VALUE,M-FLAG,Q-FLAG,S-FLAG,OBS-TIME
//
// Element units as published:
//
//	PRCP  precipitation, tenths of mm
//	SNOW  snowfall, mm
//	SNWD  snow depth, mm
//	TMAX  maximum temperature, tenths of degrees C
//	TMIN  minimum temperature, tenths of degrees C
//	AWND  average daily wind speed, tenths of meters per second
//
// Values are kept in source units all the way to the curated hex table. Unit
// conversion happens only when formatting legend ticks and tooltips.
//
// # Hexagon Records
//
// A [HexRecord] aggregates every station day inside one H3 cell on one date.
// Missing measurements stay nil (null in Parquet); they are never coerced to
// zero, since zero is a meaningful temperature and precipitation value.
package domain
