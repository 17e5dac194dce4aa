package common

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"qrshop/src/db"
	"qrshop/src/models"
	"qrshop/src/types"

	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

// SiteTables is the ordered candidate list of tenant tables left behind by
// schema migrations. The first table holding a row for a handle wins, on
// both the read and the write path, so reads-after-writes stay consistent.
var SiteTables = []string{"sites", "site_configs", "storefronts"}

var ErrSiteNotFound = errors.New("site not found")

// ownerEmailKeys are the config keys historically used for the owner's
// notification address, most recent first.
var ownerEmailKeys = []string{"notify_email", "notification_email", "owner_email", "contact.email", "email"}

func isMissingTableErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "undefined table") ||
		strings.Contains(msg, "42P01")
}

func isSchemaMismatchErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return isMissingTableErr(err) ||
		strings.Contains(msg, "undefined column") ||
		strings.Contains(msg, "42703")
}

// FindSiteByHandle probes the candidate tables in order and returns the first
// row matching the handle. A missing table is "try the next one", not an
// error; callers surface every miss as a plain not-found.
func FindSiteByHandle(handle string) (*models.Site, error) {
	d := db.GetDb()
	tried := make([]string, 0, len(SiteTables))
	for _, table := range SiteTables {
		var site models.Site
		err := d.Table(table).Where("handle = ?", handle).Take(&site).Error
		if err == nil {
			return &site, nil
		}
		tried = append(tried, table)
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableErr(err) {
			continue
		}
		log.Printf("[sites] Error probing table [%s] for handle [%s]: %s\n", table, handle, err.Error())
	}
	log.Printf("[sites] No record for handle [%s], tables tried: %v\n", handle, tried)
	return nil, ErrSiteNotFound
}

// UpsertSite writes the tenant config through the same ordered candidate
// list, stopping at the first table that accepts the write. An existing
// connected payment account id is never cleared by a config save.
func UpsertSite(handle string, ownerUserID string, contactEmail string, cfg types.JSONB) (*models.Site, error) {
	d := db.GetDb()
	for _, table := range SiteTables {
		var existing models.Site
		err := d.Table(table).Where("handle = ?", handle).Take(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableErr(err) {
				continue
			}
			log.Printf("[sites] Error probing table [%s] on write: %s\n", table, err.Error())
			continue
		}
		if existing.OwnerUserID != "" && existing.OwnerUserID != ownerUserID {
			return nil, errors.New("handle belongs to another account")
		}
		// Update in place; the stored payment account id is left untouched so
		// a config save never clears payment setup.
		updates := map[string]any{
			"owner_user_id": ownerUserID,
			"config":        cfg,
		}
		if contactEmail != "" {
			updates["contact_email"] = contactEmail
		}
		if err := d.Table(table).Where("handle = ?", handle).Updates(updates).Error; err != nil {
			if isSchemaMismatchErr(err) {
				continue
			}
			return nil, err
		}
		existing.OwnerUserID = ownerUserID
		existing.Config = cfg
		if contactEmail != "" {
			existing.ContactEmail = contactEmail
		}
		return &existing, nil
	}
	// First publish for this handle: create in the first table that accepts
	// the write.
	for _, table := range SiteTables {
		created := models.Site{
			Handle:       handle,
			OwnerUserID:  ownerUserID,
			ContactEmail: contactEmail,
			Config:       cfg,
		}
		if err := d.Table(table).Create(&created).Error; err != nil {
			if isSchemaMismatchErr(err) {
				continue
			}
			return nil, err
		}
		return &created, nil
	}
	return nil, errors.New("no tenant table accepted the write")
}

// FindSitesByOwner fans in tenant rows across the candidate tables for one
// authenticated user, deduplicating by handle in probe order. Rows written
// before owner ids existed are matched by contact email instead.
func FindSitesByOwner(userID string, email string) []models.Site {
	d := db.GetDb()
	seen := make(map[string]bool)
	out := make([]models.Site, 0)
	for _, table := range SiteTables {
		var rows []models.Site
		err := d.Table(table).Where("owner_user_id = ?", userID).Find(&rows).Error
		if err != nil {
			if !isMissingTableErr(err) {
				log.Printf("[sites] Error listing table [%s]: %s\n", table, err.Error())
			}
			continue
		}
		for _, r := range rows {
			if seen[r.Handle] {
				continue
			}
			seen[r.Handle] = true
			out = append(out, r)
		}
	}
	if len(out) > 0 || email == "" {
		return out
	}
	for _, table := range SiteTables {
		var rows []models.Site
		err := d.Table(table).Where("contact_email = ? AND (owner_user_id IS NULL OR owner_user_id = '')", email).Find(&rows).Error
		if err != nil {
			continue
		}
		for _, r := range rows {
			if seen[r.Handle] {
				continue
			}
			seen[r.Handle] = true
			out = append(out, r)
		}
	}
	return out
}

// UpdateSiteAccountStatus records connect onboarding progress for whichever
// table holds the site carrying the account id.
func UpdateSiteAccountStatus(accountID string, chargesEnabled bool) error {
	d := db.GetDb()
	for _, table := range SiteTables {
		res := d.Table(table).
			Where("stripe_account_id = ?", accountID).
			Update("charges_enabled", chargesEnabled)
		if res.Error != nil {
			if isSchemaMismatchErr(res.Error) {
				continue
			}
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return ErrSiteNotFound
}

// SetSiteAccountID persists a freshly created connected account onto the
// tenant row, through the same candidate list as every other write.
func SetSiteAccountID(handle string, accountID string) error {
	d := db.GetDb()
	for _, table := range SiteTables {
		res := d.Table(table).
			Where("handle = ?", handle).
			Update("stripe_account_id", accountID)
		if res.Error != nil {
			if isSchemaMismatchErr(res.Error) {
				continue
			}
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return ErrSiteNotFound
}

// OwnerNotifyEmail resolves the address the seller wants order summaries sent
// to, probing the config keys used across config document generations.
func OwnerNotifyEmail(site *models.Site) string {
	if site == nil {
		return ""
	}
	if len(site.Config) > 0 {
		raw, err := json.Marshal(site.Config)
		if err == nil {
			for _, key := range ownerEmailKeys {
				if v := gjson.GetBytes(raw, key); v.Exists() && strings.Contains(v.String(), "@") {
					return v.String()
				}
			}
		}
	}
	if strings.Contains(site.ContactEmail, "@") {
		return site.ContactEmail
	}
	return ""
}

// digitalFileLinks pulls the download urls configured on the catalog item
// matching the purchased title. Items carry either "file_url" or "files".
func digitalFileLinks(handle string, title string) []string {
	site, err := FindSiteByHandle(handle)
	if err != nil {
		return nil
	}
	raw, err := json.Marshal(site.Config)
	if err != nil {
		return nil
	}
	links := make([]string, 0)
	items := gjson.GetBytes(raw, "items")
	items.ForEach(func(_, item gjson.Result) bool {
		if item.Get("title").String() != title {
			return true
		}
		if u := item.Get("file_url").String(); u != "" {
			links = append(links, u)
		}
		item.Get("files").ForEach(func(_, f gjson.Result) bool {
			if u := f.String(); u != "" {
				links = append(links, u)
			}
			return true
		})
		return true
	})
	return links
}

// SiteAvailability parses the availability template out of the stored config
// document.
func SiteAvailability(site *models.Site) (*types.AvailabilityTemplate, error) {
	if site == nil || site.Config == nil {
		return nil, errors.New("site has no config")
	}
	av, ok := site.Config["availability"]
	if !ok {
		return nil, errors.New("site has no availability template")
	}
	raw, err := json.Marshal(av)
	if err != nil {
		return nil, err
	}
	var tpl types.AvailabilityTemplate
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return nil, err
	}
	if tpl.SlotMinutes <= 0 {
		tpl.SlotMinutes = 60
	}
	return &tpl, nil
}
