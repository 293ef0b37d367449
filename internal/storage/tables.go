package storage

import (
	"database/sql"
	"fmt"

	"github.com/matsen/gap/internal/affiliation"
	"github.com/matsen/gap/internal/author"
	"github.com/matsen/gap/internal/gender"
	"github.com/matsen/gap/internal/publication"
	"github.com/matsen/gap/internal/refdata"
	"github.com/matsen/gap/internal/venue"
)

// ReplaceCountries replaces the country table.
func (d *DB) ReplaceCountries(countries []refdata.Country) error {
	return replaceAll(d, TableCountry,
		`INSERT INTO country (code, display_name, continent) VALUES (?, ?, ?)`,
		countries, func(c refdata.Country) []any {
			return []any{c.Code, c.DisplayName, c.Continent}
		})
}

// ReplaceAffiliations replaces the affiliation table.
func (d *DB) ReplaceAffiliations(affs []affiliation.Affiliation) error {
	return replaceAll(d, TableAffiliation,
		`INSERT INTO affiliation (affiliation_id, full_text, country_code) VALUES (?, ?, ?)`,
		affs, func(a affiliation.Affiliation) []any {
			return []any{a.ID, a.FullText, nullableStringValue(a.CountryCode)}
		})
}

// ReplaceGenderReference replaces the gender reference table.
func (d *DB) ReplaceGenderReference(entries []gender.Entry) error {
	return replaceAll(d, TableGenderReference,
		`INSERT INTO gender_reference (first_name, ga_first_name, ga_gender, ga_accuracy, ga_samples)
		VALUES (?, ?, ?, ?, ?)`,
		entries, func(e gender.Entry) []any {
			return []any{
				e.FirstName,
				nullableStringValue(e.GaFirstName),
				nullableStringValue(e.GaGender),
				nullableInt(e.GaAccuracy, false),
				nullableInt(e.GaSamples, false),
			}
		})
}

// ReplaceAuthors replaces the author table.
func (d *DB) ReplaceAuthors(authors []author.Author) error {
	return replaceAll(d, TableAuthor,
		`INSERT INTO author (
			author_id, canonical_name, type,
			orcid_page, scholar_page, homepages,
			affiliation_id, gender, gender_source_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		authors, func(a author.Author) []any {
			return []any{
				a.ID, a.CanonicalName, a.Type,
				nullableStringValue(a.OrcidPage),
				nullableStringValue(a.ScholarPage),
				nullableStringValue(a.Homepages),
				nullableID(a.AffiliationID),
				string(a.Gender),
				nullableStringValue(a.GenderSourceName),
			}
		})
}

// ReplaceAlternativeNames replaces the alternative name table.
func (d *DB) ReplaceAlternativeNames(names []author.AlternativeName) error {
	return replaceAll(d, TableAlternativeName,
		`INSERT INTO author_alternative_name (id, canonical_name, alternative_name) VALUES (?, ?, ?)`,
		names, func(n author.AlternativeName) []any {
			return []any{n.ID, n.CanonicalName, n.AlternativeName}
		})
}

// ReplaceVenues replaces the venue table.
func (d *DB) ReplaceVenues(venues []venue.Venue) error {
	return replaceAll(d, TableVenue,
		`INSERT INTO venue (venue_id, name, type, research_area) VALUES (?, ?, ?, ?)`,
		venues, func(v venue.Venue) []any {
			return []any{v.ID, v.Name, v.Type, nullableStringValue(v.ResearchArea)}
		})
}

// ReplacePublications replaces the publication table.
func (d *DB) ReplacePublications(pubs []publication.Publication) error {
	return replaceAll(d, TablePublication,
		`INSERT INTO publication (
			publication_id, title, venue_id, type,
			publication_subtype, year, pages, author_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pubs, func(p publication.Publication) []any {
			return []any{
				p.ID, p.Title, nullableID(p.VenueID), p.Type,
				nullableStringValue(p.Subtype),
				nullableInt(p.Year, true),
				nullableStringValue(p.Pages),
				p.AuthorCount,
			}
		})
}

// ReplaceAuthorships replaces the publication_author table.
func (d *DB) ReplaceAuthorships(rows []publication.Authorship) error {
	return replaceAll(d, TablePublicationAuthor,
		`INSERT INTO publication_author (publication_id, canonical_name, position) VALUES (?, ?, ?)`,
		rows, func(a publication.Authorship) []any {
			return []any{a.PublicationID, a.CanonicalName, a.Position}
		})
}

// Affiliations returns the affiliation table ordered by ID.
func (d *DB) Affiliations() ([]affiliation.Affiliation, error) {
	rows, err := d.db.Query(`SELECT affiliation_id, full_text, country_code FROM affiliation ORDER BY affiliation_id`)
	if err != nil {
		return nil, fmt.Errorf("querying affiliations: %w", err)
	}
	defer rows.Close()

	var affs []affiliation.Affiliation
	for rows.Next() {
		var a affiliation.Affiliation
		var code sql.NullString
		if err := rows.Scan(&a.ID, &a.FullText, &code); err != nil {
			return nil, fmt.Errorf("scanning affiliation: %w", err)
		}
		a.CountryCode = code.String
		affs = append(affs, a)
	}
	return affs, rows.Err()
}

// Venues returns the venue table ordered by ID.
func (d *DB) Venues() ([]venue.Venue, error) {
	rows, err := d.db.Query(`SELECT venue_id, name, type, research_area FROM venue ORDER BY venue_id`)
	if err != nil {
		return nil, fmt.Errorf("querying venues: %w", err)
	}
	defer rows.Close()

	var venues []venue.Venue
	for rows.Next() {
		var v venue.Venue
		var area sql.NullString
		if err := rows.Scan(&v.ID, &v.Name, &v.Type, &area); err != nil {
			return nil, fmt.Errorf("scanning venue: %w", err)
		}
		v.ResearchArea = area.String
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// AuthorNames returns every canonical name and the alternative → canonical
// name map used to link publication authors.
func (d *DB) AuthorNames() ([]string, map[string]string, error) {
	rows, err := d.db.Query(`SELECT canonical_name FROM author ORDER BY canonical_name`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying author names: %w", err)
	}
	var canonical []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scanning author name: %w", err)
		}
		canonical = append(canonical, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = d.db.Query(`SELECT alternative_name, canonical_name FROM author_alternative_name`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying alternative names: %w", err)
	}
	defer rows.Close()

	alternative := make(map[string]string)
	for rows.Next() {
		var alt, name string
		if err := rows.Scan(&alt, &name); err != nil {
			return nil, nil, fmt.Errorf("scanning alternative name: %w", err)
		}
		alternative[alt] = name
	}
	return canonical, alternative, rows.Err()
}
