package objectgate

// NewOwner builds an owner entry for an organization instance.
func NewOwner(instance string) Attribute {
	return Attribute{
		ID:    OwnerEntityAttribute,
		Value: OrganizationEntity,
		Attributes: []Attribute{
			{ID: OwnerInstanceAttribute, Value: instance},
		},
	}
}

// OwnerInstances returns the owning-instance values of owners in order.
// An owner with nested attributes contributes its ownerInstance attributes;
// a flat owner ({id, value}) contributes its own value.
func OwnerInstances(owners []Attribute) []string {
	var out []string
	for _, owner := range owners {
		if len(owner.Attributes) == 0 {
			if owner.Value != "" {
				out = append(out, owner.Value)
			}
			continue
		}
		for _, attr := range owner.Attributes {
			if attr.ID == OwnerInstanceAttribute && attr.Value != "" {
				out = append(out, attr.Value)
			}
		}
	}
	return out
}

// scopeFromOwners returns the first owning instance, or "" when none.
func scopeFromOwners(owners []Attribute) string {
	if instances := OwnerInstances(owners); len(instances) > 0 {
		return instances[0]
	}
	return ""
}

// restoreScope returns subject acting within the scope of the object's
// owners, so checks on an object owned by X evaluate membership in X.
func restoreScope(subject *Subject, owners []Attribute) *Subject {
	if scope := scopeFromOwners(owners); scope != "" {
		return subject.WithScope(scope)
	}
	return subject.WithScope(subjectScope(subject))
}

func subjectScope(s *Subject) string {
	if s == nil {
		return ""
	}
	return s.Scope
}

func intersects(values []string, allowed map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := allowed[v]; ok {
			return true
		}
	}
	return false
}
