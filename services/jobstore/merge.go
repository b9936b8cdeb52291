package jobstore

// The merge policy is kept as an explicit table rather than scattered
// conditionals so its semantics can be unit tested without a store.
//
// Per-field rules:
//   - scalars: incoming wins only when existing is absent, the incoming
//     strategy is equally or more authoritative, or (when PreferRicher)
//     the incoming value is strictly richer. A present value is never
//     replaced by an absent one. Equal values are a no-op so repeated
//     merges of the same record change nothing.
//   - sets (skills): union, never shrinks.
//   - provenance: rewritten only when the field value actually changes.

// Policy controls the tie-breaking behavior between source priority
// and value richness. The source system never pinned this down, so it
// stays configurable.
type Policy struct {
	// PreferRicher allows a lower-priority strategy to overwrite a
	// higher-priority one when its value is strictly richer (e.g. a
	// longer description).
	PreferRicher bool
}

var DefaultPolicy = Policy{PreferRicher: true}

type scalarRule struct {
	field   Field
	present func(r *JobRecord) bool
	equal   func(a, b *JobRecord) bool
	richer  func(incoming, existing *JobRecord) bool
	assign  func(dst, src *JobRecord)
}

func stringRule(field Field, get func(r *JobRecord) string, set func(r *JobRecord, v string)) scalarRule {
	return scalarRule{
		field:   field,
		present: func(r *JobRecord) bool { return get(r) != "" },
		equal:   func(a, b *JobRecord) bool { return get(a) == get(b) },
		richer:  func(in, ex *JobRecord) bool { return len(get(in)) > len(get(ex)) },
		assign:  func(dst, src *JobRecord) { set(dst, get(src)) },
	}
}

func float64PtrRule(field Field, get func(r *JobRecord) *float64, set func(r *JobRecord, v *float64)) scalarRule {
	return scalarRule{
		field:   field,
		present: func(r *JobRecord) bool { return get(r) != nil },
		equal:   func(a, b *JobRecord) bool { return *get(a) == *get(b) },
		richer:  func(in, ex *JobRecord) bool { return false },
		assign: func(dst, src *JobRecord) {
			v := *get(src)
			set(dst, &v)
		},
	}
}

func budgetRichness(b Budget) int {
	n := 0
	if b.HourlyMin != 0 {
		n++
	}
	if b.HourlyMax != 0 {
		n++
	}
	if b.Amount != 0 {
		n++
	}
	return n
}

var scalarRules = []scalarRule{
	stringRule(FieldTitle,
		func(r *JobRecord) string { return r.Title },
		func(r *JobRecord, v string) { r.Title = v }),
	stringRule(FieldDescription,
		func(r *JobRecord) string { return r.Description },
		func(r *JobRecord, v string) { r.Description = v }),
	stringRule(FieldDuration,
		func(r *JobRecord) string { return r.Duration },
		func(r *JobRecord, v string) { r.Duration = v }),
	stringRule(FieldWeeklyHours,
		func(r *JobRecord) string { return r.WeeklyHours },
		func(r *JobRecord, v string) { r.WeeklyHours = v }),
	stringRule(FieldClientCountry,
		func(r *JobRecord) string { return r.ClientCountry },
		func(r *JobRecord, v string) { r.ClientCountry = v }),
	{
		field:   FieldBudget,
		present: func(r *JobRecord) bool { return !r.Budget.IsZero() },
		equal:   func(a, b *JobRecord) bool { return a.Budget == b.Budget },
		richer: func(in, ex *JobRecord) bool {
			return budgetRichness(in.Budget) > budgetRichness(ex.Budget)
		},
		assign: func(dst, src *JobRecord) { dst.Budget = src.Budget },
	},
	{
		field:   FieldExperience,
		present: func(r *JobRecord) bool { return r.Experience != ExperienceUnknown },
		equal:   func(a, b *JobRecord) bool { return a.Experience == b.Experience },
		richer:  func(in, ex *JobRecord) bool { return false },
		assign:  func(dst, src *JobRecord) { dst.Experience = src.Experience },
	},
	{
		field:   FieldProposals,
		present: func(r *JobRecord) bool { return !r.Proposals.IsZero() },
		equal: func(a, b *JobRecord) bool {
			if (a.Proposals.Count == nil) != (b.Proposals.Count == nil) {
				return false
			}
			if a.Proposals.Count != nil && *a.Proposals.Count != *b.Proposals.Count {
				return false
			}
			return a.Proposals.Bucket == b.Proposals.Bucket
		},
		// an exact count is richer than a bucketed range
		richer: func(in, ex *JobRecord) bool {
			return in.Proposals.Count != nil && ex.Proposals.Count == nil
		},
		assign: func(dst, src *JobRecord) {
			dst.Proposals = Proposals{Bucket: src.Proposals.Bucket}
			if src.Proposals.Count != nil {
				v := *src.Proposals.Count
				dst.Proposals.Count = &v
			}
		},
	},
	{
		field:   FieldPostedAt,
		present: func(r *JobRecord) bool { return !r.PostedAt.IsZero() },
		equal:   func(a, b *JobRecord) bool { return a.PostedAt == b.PostedAt },
		// an absolute timestamp is richer than a relative string
		richer: func(in, ex *JobRecord) bool {
			return !in.PostedAt.Parsed.IsZero() && ex.PostedAt.Parsed.IsZero()
		},
		assign: func(dst, src *JobRecord) { dst.PostedAt = src.PostedAt },
	},
	float64PtrRule(FieldClientSpent,
		func(r *JobRecord) *float64 { return r.ClientTotalSpent },
		func(r *JobRecord, v *float64) { r.ClientTotalSpent = v }),
	float64PtrRule(FieldClientRating,
		func(r *JobRecord) *float64 { return r.ClientRating },
		func(r *JobRecord, v *float64) { r.ClientRating = v }),
	{
		field:   FieldPaymentVerified,
		present: func(r *JobRecord) bool { return r.PaymentVerified != nil },
		equal:   func(a, b *JobRecord) bool { return *a.PaymentVerified == *b.PaymentVerified },
		richer:  func(in, ex *JobRecord) bool { return false },
		assign: func(dst, src *JobRecord) {
			v := *src.PaymentVerified
			dst.PaymentVerified = &v
		},
	},
	{
		field:   FieldConnectsRequired,
		present: func(r *JobRecord) bool { return r.ConnectsRequired != nil },
		equal:   func(a, b *JobRecord) bool { return *a.ConnectsRequired == *b.ConnectsRequired },
		richer:  func(in, ex *JobRecord) bool { return false },
		assign: func(dst, src *JobRecord) {
			v := *src.ConnectsRequired
			dst.ConnectsRequired = &v
		},
	},
}

// Merge combines two partial records for the same identity. Inputs are
// never mutated. Merge(a, nil) == a, Merge(nil, b) == b, and applying
// the same incoming record twice is a no-op.
func Merge(existing, incoming *JobRecord, policy Policy) *JobRecord {
	if incoming == nil {
		return existing.Clone()
	}
	if existing == nil {
		// the insert path must store normalized skills, otherwise a
		// repeat of the same record unions raw-cased duplicates in
		out := incoming.Clone()
		out.Skills = nil
		out.AddSkills(incoming.Skills)
		return out
	}

	out := existing.Clone()

	for _, rule := range scalarRules {
		if !rule.present(incoming) {
			continue
		}
		if !rule.present(out) {
			rule.assign(out, incoming)
			out.Stamp(rule.field, incoming.origin(rule.field).Strategy, incoming.origin(rule.field).ObservedAt)
			continue
		}
		if rule.equal(out, incoming) {
			continue
		}

		inOrigin := incoming.origin(rule.field)
		overwrite := inOrigin.Strategy.Priority() <= out.origin(rule.field).Strategy.Priority()
		if !overwrite && policy.PreferRicher {
			overwrite = rule.richer(incoming, out)
		}
		if overwrite {
			rule.assign(out, incoming)
			out.Stamp(rule.field, inOrigin.Strategy, inOrigin.ObservedAt)
		}
	}

	if added := out.AddSkills(incoming.Skills); added > 0 {
		inOrigin := incoming.origin(FieldSkills)
		out.Stamp(FieldSkills, inOrigin.Strategy, inOrigin.ObservedAt)
	}

	if out.URL == "" {
		out.URL = incoming.URL
	}
	if incoming.Source != "" {
		out.Source = incoming.Source
	}
	if out.SearchQuery == "" {
		out.SearchQuery = incoming.SearchQuery
	}
	if incoming.FetchedAt.After(out.FetchedAt) {
		out.FetchedAt = incoming.FetchedAt
	}

	return out
}
