package cel

// ExprExamples lists example "$expr" node bodies for rule authors,
// evaluated against the event tree under "event" and the capture
// groups bound by regex nodes anywhere in the same match tree under
// "captures".
var ExprExamples = map[string]string{
	"numeric_threshold":  `event.payload.amount > 100.0`,
	"numeric_range":      `event.payload.amount >= 10.0 && event.payload.amount <= 10000.0`,
	"cross_field_equal":  `event.payload.user.tier == event.payload.account.tier`,
	"capture_comparison": `int(captures.new_rev) > int(captures.old_rev)`,
	"has_field":          `has(event.payload.email) && event.payload.email != ""`,
	"combined_logic":     `(event.payload.status == "active" || event.payload.status == "pending") && event.payload.amount > 50.0`,
}
