package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/matsen/gap/internal/affiliation"
	"github.com/matsen/gap/internal/author"
	"github.com/matsen/gap/internal/config"
	"github.com/matsen/gap/internal/dblp"
	"github.com/matsen/gap/internal/export"
	"github.com/matsen/gap/internal/gender"
	"github.com/matsen/gap/internal/jsonl"
	"github.com/matsen/gap/internal/publication"
	"github.com/matsen/gap/internal/refdata"
	"github.com/matsen/gap/internal/storage"
	"github.com/matsen/gap/internal/venue"
	"go.uber.org/zap"
)

// Stage names.
const (
	StagePreflight       = "preflight"
	StageSchema          = "schema"
	StageExtract         = "extract"
	StageCountry         = "country"
	StageGenderReference = "gender_reference"
	StageAffiliation     = "affiliation"
	StageAuthor          = "author"
	StageVenue           = "venue"
	StagePublication     = "publication"
	StageAuthorship      = "authorship"
	StageFacts           = "facts"
	StageStatistics      = "statistics"
	StageExport          = "export"
)

// Artifacts that are not database tables.
const (
	artifactInputs  = "inputs"
	artifactSchema  = "schema"
	artifactRecords = "records"
	artifactFilters = "filters"
	artifactExport  = "export"
)

// wwwTag is the dblp element holding person pages.
const wwwTag = "www"

// Stages returns the full rebuild.
func Stages() []Stage {
	return []Stage{
		{Name: StagePreflight, Produces: []string{artifactInputs}, Run: checkInputs},
		{Name: StageSchema, Needs: []string{artifactInputs}, Produces: []string{artifactSchema}, Run: resetSchema},
		{Name: StageExtract, Needs: []string{artifactInputs}, Produces: []string{artifactRecords}, Run: extractRecords},
		{Name: StageCountry, Needs: []string{artifactSchema}, Produces: []string{storage.TableCountry}, Run: loadCountries},
		{Name: StageGenderReference, Needs: []string{artifactSchema}, Produces: []string{storage.TableGenderReference}, Run: loadGenderReference},
		{
			Name:     StageAffiliation,
			Needs:    []string{artifactRecords, storage.TableCountry},
			Produces: []string{storage.TableAffiliation},
			Run:      resolveAffiliations,
		},
		{
			Name:     StageAuthor,
			Needs:    []string{artifactRecords, storage.TableAffiliation, storage.TableGenderReference},
			Produces: []string{storage.TableAuthor, storage.TableAlternativeName},
			Run:      resolveAuthors,
		},
		{Name: StageVenue, Needs: []string{artifactRecords, artifactSchema}, Produces: []string{storage.TableVenue}, Run: resolveVenues},
		{
			Name:     StagePublication,
			Needs:    []string{artifactRecords, storage.TableVenue},
			Produces: []string{storage.TablePublication, config.PublicationAuthorsRecord},
			Run:      resolvePublications,
		},
		{
			Name:     StageAuthorship,
			Needs:    []string{config.PublicationAuthorsRecord, storage.TablePublication, storage.TableAuthor, storage.TableAlternativeName},
			Produces: []string{storage.TablePublicationAuthor},
			Run:      linkAuthorships,
		},
		{
			Name:     StageFacts,
			Needs:    []string{storage.TablePublicationAuthor, storage.TableVenue, storage.TableCountry},
			Produces: []string{storage.TableFact},
			Run:      buildFacts,
		},
		{
			Name:     StageStatistics,
			Needs:    []string{storage.TableFact},
			Produces: []string{storage.TableStatistics, artifactFilters},
			Run:      computeStatistics,
		},
		{
			Name:     StageExport,
			Needs:    []string{storage.TableStatistics, artifactFilters},
			Produces: []string{artifactExport},
			Run:      ExportAll,
		},
	}
}

// checkInputs fails fast on missing reference inputs, before the dump is read.
func checkInputs(ctx context.Context, r *Run) (int64, error) {
	if err := refdata.CheckFiles(r.Config.ReferenceDir); err != nil {
		return 0, err
	}
	batches, err := gender.Batches(r.Config.GenderPath)
	if err != nil {
		return 0, err
	}
	return int64(len(refdata.Files) + len(batches)), nil
}

func resetSchema(ctx context.Context, r *Run) (int64, error) {
	return 0, r.DB.Reset()
}

func extractRecords(ctx context.Context, r *Run) (int64, error) {
	ex := dblp.NewExtractor(r.Config.Settings.EntityFields(), r.Logger)
	counts, err := ex.ExtractFile(r.Config.DBLPPath, r.Config.RecordsPath)
	if err != nil {
		return 0, err
	}
	var total int64
	for tag, n := range counts {
		r.Logger.Info("extracted entity", zap.String("tag", tag), zap.Int("records", n))
		total += int64(n)
	}
	return total, nil
}

func loadCountries(ctx context.Context, r *Run) (int64, error) {
	data, err := r.referenceData()
	if err != nil {
		return 0, err
	}
	countries := data.Countries()
	return int64(len(countries)), r.DB.ReplaceCountries(countries)
}

func loadGenderReference(ctx context.Context, r *Run) (int64, error) {
	table, err := r.genderReference(ctx)
	if err != nil {
		return 0, err
	}
	entries := table.Entries()
	return int64(len(entries)), r.DB.ReplaceGenderReference(entries)
}

func resolveAffiliations(ctx context.Context, r *Run) (int64, error) {
	data, err := r.referenceData()
	if err != nil {
		return 0, err
	}

	title := r.Config.Settings.HomePageTitle
	var texts []string
	err = r.eachRecord(wwwTag, func(rec dblp.Record) error {
		if !author.IsPersonPage(rec, title) {
			return nil
		}
		if text, _ := affiliation.Choose(rec.Field("note")); text != "" {
			texts = append(texts, text)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	affs, stats := affiliation.NewResolver(data, r.Logger).Resolve(texts)

	// Variant codes without a canonical country cannot be referenced.
	known := make(map[string]bool)
	for _, c := range data.Countries() {
		known[c.Code] = true
	}
	dropped := 0
	for i := range affs {
		if code := affs[i].CountryCode; code != "" && !known[code] {
			r.Logger.Warn("country code not in country table",
				zap.String("affiliation", affs[i].FullText),
				zap.String("code", code))
			affs[i].CountryCode = ""
			dropped++
		}
	}

	r.Metrics.Failure(FailureAffiliationNoMatch, stats[affiliation.NoMatch])
	r.Metrics.Failure(FailureAffiliationAmbiguous, stats[affiliation.Ambiguous])
	r.Metrics.Failure(FailureAffiliationNoCountry, dropped)
	r.Logger.Info("resolved affiliations",
		zap.Int("affiliations", len(affs)),
		zap.Int("resolved", stats[affiliation.Resolved]-dropped),
		zap.Int("no_match", stats[affiliation.NoMatch]),
		zap.Int("ambiguous", stats[affiliation.Ambiguous]))

	return int64(len(affs)), r.DB.ReplaceAffiliations(affs)
}

func resolveAuthors(ctx context.Context, r *Run) (int64, error) {
	affs, err := r.DB.Affiliations()
	if err != nil {
		return 0, err
	}
	table, err := r.genderReference(ctx)
	if err != nil {
		return 0, err
	}

	settings := r.Config.Settings
	engine := gender.NewEngine(gender.NewNameParser(settings.NobiliaryParticles), table)
	resolver := author.NewResolver(author.Options{
		HomePageTitle: settings.HomePageTitle,
		OrcidToken:    settings.OrcidToken,
		ScholarToken:  settings.ScholarToken,
	}, engine, affiliation.NewIndex(affs), r.Logger)

	err = r.eachRecord(wwwTag, func(rec dblp.Record) error {
		resolver.Add(rec)
		return nil
	})
	if err != nil {
		return 0, err
	}

	authors := resolver.Authors()
	if err := r.DB.ReplaceAuthors(authors); err != nil {
		return 0, err
	}
	if err := r.DB.ReplaceAlternativeNames(resolver.AlternativeNames()); err != nil {
		return 0, err
	}

	unknown := author.UnknownFirstNames(authors, engine.Parser())
	if err := export.FirstNames(r.Config.UnknownFirstNamesPath(), unknown); err != nil {
		return 0, err
	}

	r.Logger.Info("resolved authors",
		zap.Int("authors", len(authors)),
		zap.Int("alternative_names", len(resolver.AlternativeNames())),
		zap.Int("skipped_pages", resolver.Skipped()),
		zap.Int("multi_affiliation", resolver.MultiAffiliation()),
		zap.Int("unknown_first_names", len(unknown)))
	return int64(len(authors)), nil
}

func resolveVenues(ctx context.Context, r *Run) (int64, error) {
	names := make(map[string][]string)
	for _, src := range publication.Sources {
		if src.VenueField == "" {
			continue
		}
		err := r.eachRecord(src.Tag, func(rec dblp.Record) error {
			if name := src.VenueName(rec); name != "" {
				names[src.VenueType] = append(names[src.VenueType], name)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	venues := venue.Resolve(names[venue.TypeConference], names[venue.TypeJournal])
	return int64(len(venues)), r.DB.ReplaceVenues(venues)
}

func resolvePublications(ctx context.Context, r *Run) (int64, error) {
	venues, err := r.DB.Venues()
	if err != nil {
		return 0, err
	}
	idx := venue.NewIndex(venues)

	w, err := jsonl.Create[publication.Raw](r.Config.RecordsPath(config.PublicationAuthorsRecord))
	if err != nil {
		return 0, err
	}
	defer w.Close()

	var (
		pubs       []publication.Publication
		untyped    [][]string
		seen       = make(map[string]bool)
		unresolved int
		duplicates int
	)
	for _, entity := range r.Config.Settings.Entities {
		if entity.Tag == wwwTag {
			continue
		}
		src, typed := publication.SourceFor(entity.Tag)
		err := r.eachRecord(entity.Tag, func(rec dblp.Record) error {
			if !typed {
				untyped = append(untyped, []string{rec.Key(), rec.Tag, rec.Field("title").Joined()})
				return nil
			}
			if seen[rec.Key()] {
				r.Logger.Warn("duplicate publication key", zap.String("key", rec.Key()), zap.String("tag", rec.Tag))
				duplicates++
				return nil
			}
			seen[rec.Key()] = true

			p, raw := src.Normalize(rec, idx)
			if p.VenueID == 0 && src.VenueName(rec) != "" {
				unresolved++
			}
			pubs = append(pubs, p)
			return w.Write(raw)
		})
		if err != nil {
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	r.Logger.Debug("wrote author lists", zap.Int("publications", w.Count()))

	if err := r.DB.ReplacePublications(pubs); err != nil {
		return 0, err
	}
	path := r.Config.DiagnosticsPath(config.NoPublicationTypeFile)
	if err := export.WriteCSV(path, []string{"publication_id", "tag", "title"}, untyped); err != nil {
		return 0, err
	}

	r.Metrics.Failure(FailureVenueUnresolved, unresolved)
	r.Metrics.Failure(FailureNoPublicationType, len(untyped))
	r.Metrics.Failure(FailureDuplicatePublication, duplicates)
	if len(untyped) > 0 {
		r.Logger.Warn("records without publication type", zap.Int("count", len(untyped)), zap.String("file", path))
	}
	return int64(len(pubs)), nil
}

func linkAuthorships(ctx context.Context, r *Run) (int64, error) {
	canonical, alternative, err := r.DB.AuthorNames()
	if err != nil {
		return 0, err
	}

	linker := publication.NewLinker(publication.NewNames(canonical, alternative))
	err = jsonl.Each(r.Config.RecordsPath(config.PublicationAuthorsRecord), func(raw publication.Raw) error {
		linker.Add(raw)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reading publication authors: %w", err)
	}

	rows := linker.Authorships()
	if err := r.DB.ReplaceAuthorships(rows); err != nil {
		return 0, err
	}

	conflicts := linker.Conflicts()
	if err := export.Conflicts(r.Config.DiagnosticsPath(config.DuplicatedAuthorsFile), conflicts); err != nil {
		return 0, err
	}
	unresolved := linker.Unresolved()
	if err := export.Unresolved(r.Config.DiagnosticsPath(config.UnresolvedAuthorsFile), unresolved); err != nil {
		return 0, err
	}

	r.Metrics.Failure(FailureAuthorshipConflict, len(conflicts))
	r.Metrics.Failure(FailureUnresolvedAuthor, len(unresolved))
	if len(conflicts) > 0 {
		r.Logger.Warn("publications with duplicated authors",
			zap.Int("rows", len(conflicts)),
			zap.String("file", config.DuplicatedAuthorsFile))
	}
	r.Logger.Info("linked authorships",
		zap.Int("authorships", len(rows)),
		zap.Int("unresolved", len(unresolved)),
		zap.Int("exact_duplicates", linker.Duplicates()))
	return int64(len(rows)), nil
}

func buildFacts(ctx context.Context, r *Run) (int64, error) {
	n, err := r.DB.BuildFacts()
	if err != nil {
		return 0, err
	}

	aliases, err := refdata.LoadResearchAreas(r.Config.ReferencePath(refdata.ResearchAreasFile))
	if err != nil {
		return 0, err
	}
	matched, err := r.DB.AssignResearchAreas(aliases)
	if err != nil {
		return 0, err
	}
	r.Metrics.Failure(FailureResearchAreaUnmatched, len(aliases)-matched)
	r.Logger.Info("assigned research areas", zap.Int("aliases", len(aliases)), zap.Int("matched", matched))

	return n, r.DB.CreateFactIndexes()
}

func computeStatistics(ctx context.Context, r *Run) (int64, error) {
	stats, err := r.DB.ComputeStatistics(r.BuildID, r.Now())
	if err != nil {
		return 0, err
	}
	if err := r.DB.WriteStatistics(stats); err != nil {
		return 0, err
	}

	lists, err := r.DB.FilterLists()
	if err != nil {
		return 0, err
	}
	if err := export.Filters(lists, r.Config.FiltersPath()); err != nil {
		return 0, err
	}
	return int64(len(stats)), nil
}

// ExportAll writes every table as CSV and, when a bucket is configured,
// publishes the export directory.
func ExportAll(ctx context.Context, r *Run) (int64, error) {
	counts, err := export.Tables(r.DB, r.Config.TablesPath())
	if err != nil {
		return 0, err
	}
	var total int64
	for _, n := range counts {
		total += int64(n)
	}

	pub := r.Publisher
	if pub == nil && r.Config.S3.Enabled() {
		client, err := export.NewS3Client(ctx, r.Config.S3)
		if err != nil {
			return total, err
		}
		pub = export.NewPublisher(client, r.Config.S3, r.Logger)
	}
	if pub == nil {
		return total, nil
	}
	if _, err := os.Stat(r.Config.ExportDir); err != nil {
		return total, fmt.Errorf("export directory: %w", err)
	}
	if _, err := pub.PublishDir(ctx, r.Config.ExportDir); err != nil {
		return total, err
	}
	return total, nil
}
