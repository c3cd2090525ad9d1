package review

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"orgreview/internal/common/database"
	apperrors "orgreview/internal/common/errors"
	"orgreview/internal/common/logger"
	"orgreview/internal/models"
)

const acronymCacheTTL = 10 * time.Minute

// OrganizationResolver maps tenant-supplied identifiers (numeric id or
// unique acronym) to canonical organization ids in one batched lookup.
// Acronym hits are served from Redis when a cache client is configured.
type OrganizationResolver struct {
	db     *sql.DB
	cache  *database.RedisClient
	logger logger.Logger
}

func NewOrganizationResolver(db *sql.DB, cache *database.RedisClient, log logger.Logger) *OrganizationResolver {
	return &OrganizationResolver{
		db:     db,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "org-resolver"}),
	}
}

// Resolve returns identifier -> canonical id for every identifier, or a
// NotFound error listing every unresolved identifier. No partial result.
func (r *OrganizationResolver) Resolve(ctx context.Context, identifiers []string) (map[string]int64, error) {
	if len(identifiers) == 0 {
		return map[string]int64{}, nil
	}

	resolved := make(map[string]int64, len(identifiers))

	var numericIDs []int64
	var acronyms []string
	seenNumeric := map[int64]bool{}
	seenAcronym := map[string]bool{}

	for _, ident := range identifiers {
		ident = strings.TrimSpace(ident)
		if ident == "" {
			return nil, apperrors.NewInvalidInputError("empty organization identifier")
		}
		if id, err := strconv.ParseInt(ident, 10, 64); err == nil {
			if !seenNumeric[id] {
				seenNumeric[id] = true
				numericIDs = append(numericIDs, id)
			}
			continue
		}
		if r.cache != nil {
			if cached, err := r.cache.Get(ctx, acronymCacheKey(ident)); err == nil {
				if id, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
					resolved[ident] = id
					continue
				}
			}
		}
		if !seenAcronym[ident] {
			seenAcronym[ident] = true
			acronyms = append(acronyms, ident)
		}
	}

	if len(numericIDs) > 0 || len(acronyms) > 0 {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, acronym FROM organizations
			WHERE id = ANY($1) OR acronym = ANY($2)`,
			pq.Array(numericIDs), pq.Array(acronyms))
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("organization lookup: %w", err))
		}
		defer rows.Close()

		byID := map[int64]bool{}
		byAcronym := map[string]int64{}
		for rows.Next() {
			var id int64
			var acronym string
			if err := rows.Scan(&id, &acronym); err != nil {
				return nil, apperrors.NewInternalError(fmt.Errorf("organization scan: %w", err))
			}
			byID[id] = true
			byAcronym[acronym] = id
		}
		if err := rows.Err(); err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("organization rows: %w", err))
		}

		for _, id := range numericIDs {
			if byID[id] {
				resolved[strconv.FormatInt(id, 10)] = id
			}
		}
		for _, acronym := range acronyms {
			if id, ok := byAcronym[acronym]; ok {
				resolved[acronym] = id
				if r.cache != nil {
					if err := r.cache.Set(ctx, acronymCacheKey(acronym), strconv.FormatInt(id, 10), acronymCacheTTL); err != nil {
						r.logger.Warn("acronym cache write failed", map[string]interface{}{
							"acronym": acronym,
							"error":   err.Error(),
						})
					}
				}
			}
		}
	}

	var missing []string
	for _, ident := range identifiers {
		ident = strings.TrimSpace(ident)
		if _, ok := resolved[ident]; !ok {
			missing = append(missing, ident)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperrors.NewNotFoundError("organization",
			fmt.Sprintf("unresolved identifiers: %s", strings.Join(missing, ", ")))
	}

	return resolved, nil
}

// ResolveOne is the single-identifier convenience used by list endpoints.
func (r *OrganizationResolver) ResolveOne(ctx context.Context, identifier string) (int64, error) {
	ids, err := r.Resolve(ctx, []string{identifier})
	if err != nil {
		return 0, err
	}
	return ids[strings.TrimSpace(identifier)], nil
}

// GetByID loads the full organization row, used for notification content.
func (r *OrganizationResolver) GetByID(ctx context.Context, id int64) (*models.Organization, error) {
	var org models.Organization
	err := r.db.QueryRowContext(ctx, `
		SELECT id, acronym, name, COALESCE(logo, ''), COALESCE(description, ''),
		       COALESCE(contact_email, ''), COALESCE(contact_phone, '')
		FROM organizations WHERE id = $1`, id).
		Scan(&org.ID, &org.Acronym, &org.Name, &org.Logo, &org.Description,
			&org.ContactEmail, &org.ContactPhone)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("organization", fmt.Sprintf("id: %d", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("organization load: %w", err))
	}
	return &org, nil
}

func acronymCacheKey(acronym string) string {
	return "org:acronym:" + acronym
}
