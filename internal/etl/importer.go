package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BartekS5/ida/internal/formula"
	"github.com/BartekS5/ida/internal/hierarchy"
	"github.com/BartekS5/ida/pkg/logger"
	"github.com/BartekS5/ida/pkg/models"
)

const recordSavepoint = "ida_record"

type BatchRequest struct {
	SessionID string   `json:"sessionId" validate:"required"`
	CompanyID string   `json:"companyId" validate:"required"`
	Skip      int      `json:"skip" validate:"gte=0"`
	Limit     int      `json:"limit" validate:"gte=0,lte=10000"`
	SourceIDs []string `json:"sourceIds,omitempty" validate:"omitempty,dive,required"`
}

type BatchResult struct {
	ImportedCount int                   `json:"importedCount"`
	SkippedCount  int                   `json:"skippedCount"`
	ErrorCount    int                   `json:"errorCount"`
	Errors        []models.SessionError `json:"errors"`
	// HasMore is false when the page ended exactly on the last record.
	HasMore       bool                  `json:"hasMore"`
	Status        models.SessionStatus  `json:"status"`
}

// ImportBatch runs one page of every sub-import of the session inside a
// single transaction, together with the session counter update.
// Precondition failures return an error and change nothing; per-record
// failures are reported in the result.
func (e *Engine) ImportBatch(ctx context.Context, req BatchRequest) (res *BatchResult, err error) {
	if err := e.validator.Struct(req); err != nil {
		return nil, models.WrapError(models.ErrInvalidRequest, err, "import batch")
	}
	if req.Limit == 0 && len(req.SourceIDs) == 0 {
		return nil, models.NewError(models.ErrInvalidRequest, "import batch: limit or source ids required")
	}

	started := time.Now()
	defer func() {
		m := getMetrics()
		m.batchesTotal.WithLabelValues(outcome(err)).Inc()
		m.batchDuration.WithLabelValues(outcome(err)).Observe(time.Since(started).Seconds())
	}()

	err = e.store.Transactional(ctx, func(tx TargetTx) error {
		session, err := tx.GetSession(ctx, req.SessionID)
		if err != nil {
			return err
		}
		if session.CompanyID != req.CompanyID {
			return models.NewError(models.ErrSessionNotFound, "session %s not found for company %s", req.SessionID, req.CompanyID)
		}
		if err := session.CheckImportable(); err != nil {
			return err
		}

		run := &batchRun{
			e:       e,
			tx:      tx,
			session: session,
			req:     req,
			now:     e.now(),
			log: logger.WithFields(logrus.Fields{
				"session": session.ID,
				"company": session.CompanyID,
			}),
		}
		res, err = run.execute(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// batchRun is the state of one ImportBatch call.
type batchRun struct {
	e       *Engine
	tx      TargetTx
	session *models.MigrationSession
	req     BatchRequest
	now     time.Time
	log     *logrus.Entry

	delta models.BatchDelta
	undo  []func()

	// cross reference maps, source id (or path key) to target id
	categories  map[string]string
	offices     map[string]string
	options     map[string]string
	upcharges   map[string]string
	images      map[string]string
	extraFields map[string]string
}

func (r *batchRun) execute(ctx context.Context) (*BatchResult, error) {
	if err := r.loadRefs(ctx); err != nil {
		return nil, err
	}

	hasMore := false
	for _, t := range r.session.EntityTypes {
		var more bool
		var err error
		switch t {
		case models.EntityCategories:
			// the hierarchy is built once, on the first batch
			if r.session.Processed() != 0 {
				continue
			}
			err = r.importCategories(ctx)
		case models.EntityOptions, models.EntityUpCharges:
			more, err = r.importPriced(ctx, sourceKindOf(t), t)
		case models.EntityItems:
			more, err = r.importItems(ctx)
		}
		if err != nil {
			if models.KindOf(err) == "" {
				err = models.WrapError(models.ErrImportFailed, err, "import %s", t)
			}
			return nil, err
		}
		hasMore = hasMore || more
	}

	completed, err := r.session.ApplyBatch(r.delta, hasMore, r.now)
	if err != nil {
		return nil, err
	}
	if completed && r.session.Includes(models.EntityItems) {
		if err := r.resolveFormulas(ctx); err != nil {
			return nil, models.WrapError(models.ErrImportFailed, err, "resolve formulas")
		}
	}
	if err := r.tx.UpdateSession(ctx, r.session); err != nil {
		return nil, models.WrapError(models.ErrImportFailed, err, "update session")
	}

	r.log.WithFields(logrus.Fields{
		"imported": r.delta.Imported,
		"skipped":  r.delta.Skipped,
		"errors":   r.delta.ErrorCount(),
		"has_more": hasMore,
		"status":   r.session.Status,
	}).Info("Batch processed")

	errs := r.delta.Errors
	if errs == nil {
		errs = []models.SessionError{}
	}
	return &BatchResult{
		ImportedCount: r.delta.Imported,
		SkippedCount:  r.delta.Skipped,
		ErrorCount:    r.delta.ErrorCount(),
		Errors:        errs,
		HasMore:       hasMore,
		Status:        r.session.Status,
	}, nil
}

func (r *batchRun) loadRefs(ctx context.Context) error {
	company := r.session.CompanyID
	cats, err := r.tx.Categories(ctx, company)
	if err != nil {
		return models.WrapError(models.ErrImportFailed, err, "load categories")
	}
	r.categories = categoryPaths(cats)

	needsLinks := r.session.Includes(models.EntityOptions) ||
		r.session.Includes(models.EntityUpCharges) ||
		r.session.Includes(models.EntityItems)
	if !needsLinks {
		return nil
	}

	legacyOffices, err := r.e.loadOffices(ctx, r.session.SourceCompanyID)
	if err != nil {
		return err
	}
	targetOffices, err := r.tx.Offices(ctx, company)
	if err != nil {
		return models.WrapError(models.ErrImportFailed, err, "load offices")
	}
	r.offices = matchOffices(legacyOffices, targetOffices)

	for _, ref := range []struct {
		kind models.EntityKind
		dst  *map[string]string
	}{
		{models.KindPriceOption, &r.options},
		{models.KindUpCharge, &r.upcharges},
		{models.KindImage, &r.images},
		{models.KindExtraField, &r.extraFields},
	} {
		idx, err := r.tx.SourceIndex(ctx, ref.kind, company)
		if err != nil {
			return models.WrapError(models.ErrImportFailed, err, "load %s", ref.kind)
		}
		*ref.dst = idx
	}
	return nil
}

// categoryPaths keys every stored category by its name path. When rows
// share a path the first one in load order wins.
func categoryPaths(cats []models.Category) map[string]string {
	byID := make(map[string]models.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	out := make(map[string]string, len(cats))
	for _, c := range cats {
		path := []string{c.Name}
		cur := c
		for steps := 0; cur.ParentID != nil && steps < len(cats); steps++ {
			parent, ok := byID[*cur.ParentID]
			if !ok {
				break
			}
			path = append(path, parent.Name)
			cur = parent
		}
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		key := hierarchy.PathKey(path)
		if _, dup := out[key]; !dup {
			out[key] = c.ID
		}
	}
	return out
}

// matchOffices maps legacy office ids to target offices, first by a stored
// source id, then by case-insensitive name.
func matchOffices(legacy []models.LegacyOffice, target []models.Office) map[string]string {
	out := make(map[string]string, len(legacy))
	byName := make(map[string]string, len(target))
	for _, o := range target {
		if sid := models.Deref(o.SourceID); sid != "" {
			out[sid] = o.ID
		}
		key := strings.ToLower(strings.TrimSpace(o.Name))
		if _, dup := byName[key]; !dup && key != "" {
			byName[key] = o.ID
		}
	}
	for _, l := range legacy {
		if _, ok := out[l.SourceID]; ok {
			continue
		}
		if id, ok := byName[strings.ToLower(strings.TrimSpace(l.Name))]; ok {
			out[l.SourceID] = id
		}
	}
	return out
}

// record runs one record under a savepoint. An error rolls the record back
// and is captured on the batch; only savepoint failures abort the batch.
func (r *batchRun) record(ctx context.Context, entity models.EntityType, sourceID string, fn func() (skipped bool, err error)) error {
	if err := r.tx.Savepoint(ctx, recordSavepoint); err != nil {
		return models.WrapError(models.ErrImportFailed, err, "%s %s", entity, sourceID)
	}
	r.undo = r.undo[:0]

	skipped, err := fn()
	if err != nil {
		if rbErr := r.tx.RollbackTo(ctx, recordSavepoint); rbErr != nil {
			return models.WrapError(models.ErrImportFailed, rbErr, "%s %s", entity, sourceID)
		}
		for i := len(r.undo) - 1; i >= 0; i-- {
			r.undo[i]()
		}
		r.undo = r.undo[:0]

		captured := models.WrapError(models.ErrTransformFailed, err, "%s %s", entity, sourceID)
		r.delta.Errors = append(r.delta.Errors, models.SessionError{
			SourceID:  sourceID,
			Error:     captured.Error(),
			Timestamp: r.now,
		})
		r.log.WithField("source_id", sourceID).Warnf("Record failed: %v", err)
		getMetrics().recordsTotal.WithLabelValues(string(entity), "error").Inc()
		return nil
	}
	if err := r.tx.Release(ctx, recordSavepoint); err != nil {
		return models.WrapError(models.ErrImportFailed, err, "%s %s", entity, sourceID)
	}
	r.undo = r.undo[:0]

	if skipped {
		r.delta.Skipped++
		getMetrics().recordsTotal.WithLabelValues(string(entity), "skipped").Inc()
	} else {
		r.delta.Imported++
		getMetrics().recordsTotal.WithLabelValues(string(entity), "imported").Inc()
	}
	return nil
}

// remember sets m[key] and arranges for it to be undone if the current
// record fails.
func (r *batchRun) remember(m map[string]string, key, id string) {
	prev, had := m[key]
	m[key] = id
	r.undo = append(r.undo, func() {
		if had {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

// fetch reads this batch's page of kind. One record past the page is read
// so that a page ending exactly at the last record reports no more.
// Explicit source ids never have more.
func (r *batchRun) fetch(ctx context.Context, kind models.SourceKind) ([]models.Document, bool, error) {
	company := r.session.SourceCompanyID
	if len(r.req.SourceIDs) > 0 {
		docs, err := r.e.reader.QueryByIDs(ctx, kind, company, r.req.SourceIDs)
		return docs, false, err
	}
	docs, err := r.e.reader.QueryPage(ctx, kind, company, r.req.Skip, r.req.Limit+1)
	if err != nil {
		return nil, false, err
	}
	if len(docs) > r.req.Limit {
		return docs[:r.req.Limit], true, nil
	}
	return docs, false, nil
}

func (r *batchRun) sessionID() *string {
	id := r.session.ID
	return &id
}

// categorySourceID is the config id of a declared root, otherwise the JSON
// encoded name path, which cannot collide for names containing separators.
func categorySourceID(c hierarchy.FlattenedCategory) string {
	if c.SourceID != "" {
		return c.SourceID
	}
	b, _ := json.Marshal(c.Path)
	return "path:" + string(b)
}

func (r *batchRun) importCategories(ctx context.Context) error {
	company := r.session.SourceCompanyID
	roots, err := r.e.loadRoots(ctx, company)
	if err != nil {
		return err
	}
	items, err := r.e.loadItems(ctx, company)
	if err != nil {
		return err
	}
	tree, err := hierarchy.Build(roots, items)
	if err != nil {
		return err
	}

	for _, c := range tree.Flatten() {
		sid := categorySourceID(c)
		key := hierarchy.PathKey(c.Path)
		err := r.record(ctx, models.EntityCategories, sid, func() (bool, error) {
			// a category is identified by its name at its place in the
			// tree, whichever session or config created it
			if _, ok := r.categories[key]; ok {
				return true, nil
			}

			var parentID *string
			if c.Depth > 0 {
				pid, ok := r.categories[hierarchy.PathKey(c.Path[:c.Depth])]
				if !ok {
					return false, fmt.Errorf("parent category %q is missing", strings.Join(c.Path[:c.Depth], " > "))
				}
				parentID = &pid
			}
			row := models.Category{
				ID:           r.e.newID(),
				CompanyID:    r.session.CompanyID,
				ParentID:     parentID,
				Name:         c.Name,
				CategoryType: c.Type,
				SortOrder:    c.SortOrder,
				Depth:        c.Depth,
				SourceID:     sid,
				SessionID:    r.sessionID(),
			}
			if err := r.tx.Insert(ctx, models.KindCategory, row); err != nil {
				return false, err
			}
			r.remember(r.categories, key, row.ID)
			return false, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *batchRun) ensureImage(ctx context.Context, url string) (*string, error) {
	if url == "" {
		return nil, nil
	}
	if id, ok := r.images[url]; ok {
		return &id, nil
	}
	img := models.Image{
		ID:        r.e.newID(),
		CompanyID: r.session.CompanyID,
		URL:       url,
		SourceID:  url,
		SessionID: r.sessionID(),
	}
	if err := r.tx.Insert(ctx, models.KindImage, img); err != nil {
		return nil, err
	}
	r.remember(r.images, url, img.ID)
	return &img.ID, nil
}

func (r *batchRun) insertPrices(ctx context.Context, ownerKind, ownerID string, prices []models.LegacyPrice) error {
	for _, p := range prices {
		officeID, ok := r.offices[p.OfficeID]
		if !ok {
			continue
		}
		row := models.Price{
			ID:        r.e.newID(),
			CompanyID: r.session.CompanyID,
			OwnerKind: ownerKind,
			OwnerID:   ownerID,
			OfficeID:  officeID,
			Amount:    p.Total,
			SessionID: r.sessionID(),
		}
		if err := r.tx.Insert(ctx, models.KindPrice, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *batchRun) importPriced(ctx context.Context, source models.SourceKind, entity models.EntityType) (bool, error) {
	docs, hasMore, err := r.fetch(ctx, source)
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		sid := r.e.transformer.SourceID(doc)
		err := r.record(ctx, entity, sid, func() (bool, error) {
			return r.importPricedRecord(ctx, source, sid, doc)
		})
		if err != nil {
			return false, err
		}
	}
	return hasMore, nil
}

func (r *batchRun) importPricedRecord(ctx context.Context, source models.SourceKind, sid string, doc models.Document) (bool, error) {
	upcharge := source == models.SourceUpCharges
	kind, index, ownerKind := models.KindPriceOption, r.options, models.PriceOwnerOption
	if upcharge {
		kind, index, ownerKind = models.KindUpCharge, r.upcharges, models.PriceOwnerUpCharge
	}

	if id, ok, err := r.tx.Exists(ctx, kind, sid, r.session.CompanyID); err != nil {
		return false, err
	} else if ok {
		r.remember(index, sid, id)
		return true, nil
	}

	rec, err := r.e.transformer.PricedItem(source, doc)
	if err != nil {
		return false, err
	}
	imageID, err := r.ensureImage(ctx, rec.ImageURL)
	if err != nil {
		return false, err
	}

	id := r.e.newID()
	var row interface{}
	if upcharge {
		row = models.UpCharge{
			ID:        id,
			CompanyID: r.session.CompanyID,
			Name:      rec.Name,
			Note:      rec.Note,
			ImageID:   imageID,
			SourceID:  sid,
			SessionID: r.sessionID(),
		}
	} else {
		row = models.PriceOption{
			ID:        id,
			CompanyID: r.session.CompanyID,
			Name:      rec.Name,
			Brand:     rec.Brand,
			Model:     rec.Model,
			ImageID:   imageID,
			SourceID:  sid,
			SessionID: r.sessionID(),
		}
	}
	if err := r.tx.Insert(ctx, kind, row); err != nil {
		return false, err
	}
	if err := r.insertPrices(ctx, ownerKind, id, rec.Prices); err != nil {
		return false, err
	}

	if upcharge {
		seen := map[string]bool{}
		for _, parent := range rec.DisabledParents {
			optionID, ok := r.options[parent]
			if !ok || seen[optionID] {
				continue
			}
			seen[optionID] = true
			link := models.UpChargeDisabledOption{
				ID:         r.e.newID(),
				UpChargeID: id,
				OptionID:   optionID,
				SessionID:  r.sessionID(),
			}
			if err := r.tx.Insert(ctx, models.KindUpChargeDisabledOption, link); err != nil {
				return false, err
			}
		}
	}

	r.remember(index, sid, id)
	return false, nil
}

func (r *batchRun) importItems(ctx context.Context) (bool, error) {
	docs, hasMore, err := r.fetch(ctx, models.SourceItems)
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		sid := r.e.transformer.SourceID(doc)
		err := r.record(ctx, models.EntityItems, sid, func() (bool, error) {
			return r.importItemRecord(ctx, sid, doc)
		})
		if err != nil {
			return false, err
		}
	}
	return hasMore, nil
}

func (r *batchRun) importItemRecord(ctx context.Context, sid string, doc models.Document) (bool, error) {
	if _, ok, err := r.tx.Exists(ctx, models.KindItem, sid, r.session.CompanyID); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	rec, err := r.e.transformer.Item(doc)
	if err != nil {
		return false, err
	}
	path := hierarchy.PathOf(rec)
	categoryID, ok := r.categories[hierarchy.PathKey(path)]
	if !ok {
		return false, fmt.Errorf("category %q not found", strings.Join(path, " > "))
	}
	if rec.Formula != "" {
		if syn := formula.ValidateSyntax(rec.Formula); !syn.Valid {
			r.log.WithField("source_id", sid).Warnf("Invalid formula %q: %s", rec.Formula, syn.Error)
		}
	}
	imageID, err := r.ensureImage(ctx, rec.ImageURL)
	if err != nil {
		return false, err
	}

	item := models.Item{
		ID:              r.e.newID(),
		CompanyID:       r.session.CompanyID,
		CategoryID:      categoryID,
		Name:            rec.Name,
		Note:            rec.Note,
		MeasurementType: rec.MeasurementType,
		FormulaID:       models.Ptr(rec.FormulaID),
		LegacyFormula:   models.Ptr(rec.Formula),
		SortOrder:       rec.SortOrder,
		ImageID:         imageID,
		SourceID:        sid,
		SessionID:       r.sessionID(),
	}
	if err := r.tx.Insert(ctx, models.KindItem, item); err != nil {
		return false, err
	}

	seen := map[string]bool{}
	n := 0
	for _, legacyID := range rec.OptionIDs {
		optionID, ok := r.options[legacyID]
		if !ok || seen[optionID] {
			continue
		}
		seen[optionID] = true
		link := models.ItemOption{ID: r.e.newID(), ItemID: item.ID, OptionID: optionID, SortOrder: n, SessionID: r.sessionID()}
		if err := r.tx.Insert(ctx, models.KindItemOption, link); err != nil {
			return false, err
		}
		n++
	}

	for _, legacyID := range rec.IncludedOffices {
		officeID, ok := r.offices[legacyID]
		if !ok || seen[officeID] {
			continue
		}
		seen[officeID] = true
		link := models.ItemOffice{ID: r.e.newID(), ItemID: item.ID, OfficeID: officeID, SessionID: r.sessionID()}
		if err := r.tx.Insert(ctx, models.KindItemOffice, link); err != nil {
			return false, err
		}
	}

	n = 0
	for _, f := range rec.ExtraFields {
		if f.SourceID == "" {
			continue
		}
		fieldID, err := r.ensureExtraField(ctx, f)
		if err != nil {
			return false, err
		}
		if seen[fieldID] {
			continue
		}
		seen[fieldID] = true
		link := models.ItemExtraField{ID: r.e.newID(), ItemID: item.ID, ExtraFieldID: fieldID, SortOrder: n, SessionID: r.sessionID()}
		if err := r.tx.Insert(ctx, models.KindItemExtraField, link); err != nil {
			return false, err
		}
		n++
	}
	return false, nil
}

func (r *batchRun) ensureExtraField(ctx context.Context, f models.LegacyExtraField) (string, error) {
	if id, ok := r.extraFields[f.SourceID]; ok {
		return id, nil
	}
	row := models.ExtraField{
		ID:        r.e.newID(),
		CompanyID: r.session.CompanyID,
		Title:     f.Title,
		InputType: f.InputType,
		SourceID:  f.SourceID,
		SessionID: r.sessionID(),
	}
	if err := r.tx.Insert(ctx, models.KindExtraField, row); err != nil {
		return "", err
	}
	r.remember(r.extraFields, f.SourceID, row.ID)
	return row.ID, nil
}

// resolveFormulas rewrites the legacy references of the session's items to
// target ids once every item of the company is known, then records the
// circular chains it finds.
func (r *batchRun) resolveFormulas(ctx context.Context) error {
	rows, err := r.tx.ItemFormulas(ctx, r.session.CompanyID)
	if err != nil {
		return err
	}

	imported := make([]formula.ImportedItem, 0, len(rows))
	for _, row := range rows {
		imported = append(imported, formula.ImportedItem{
			ID:        row.ID,
			SourceID:  row.SourceID,
			FormulaID: models.Deref(row.FormulaID),
		})
	}
	idMap := formula.BuildIDMapping(imported)

	sourceOf := make(map[string]string, len(rows))
	inSession := make(map[string]bool, len(rows))
	items := make([]formula.Item, 0, len(rows))
	for _, row := range rows {
		sourceOf[row.ID] = row.SourceID
		current := models.Deref(row.Formula)
		if models.Deref(row.SessionID) == r.session.ID {
			inSession[row.ID] = true
			if legacy := models.Deref(row.LegacyFormula); legacy != "" {
				res := formula.Transform(legacy, idMap)
				if len(res.UnresolvedRefs) > 0 {
					r.log.WithField("source_id", row.SourceID).
						Warnf("Unresolved formula references %v", res.UnresolvedRefs)
				}
				current = res.Formula
				if err := r.tx.UpdateItemFormula(ctx, row.ID, &current); err != nil {
					return err
				}
			}
		}
		items = append(items, formula.Item{ID: row.ID, Formula: current})
	}

	report := formula.Analyze(items)
	for _, issue := range report.SyntaxErrors {
		if inSession[issue.ItemID] {
			r.log.WithField("source_id", sourceOf[issue.ItemID]).Warnf("Formula syntax: %s", issue.Detail)
		}
	}
	for _, c := range report.Cycles {
		if !inSession[c.ItemID] {
			continue
		}
		names := make([]string, len(c.Path))
		for i, id := range c.Path {
			names[i] = sourceOf[id]
		}
		r.session.AppendNote(sourceOf[c.ItemID], "circular formula reference: "+strings.Join(names, " -> "), r.now)
	}
	return nil
}
