package vecmatch

import (
	"fmt"
	"reflect"
)

const tagKey = "vecmatch"

// Struct tag roles.
const (
	roleID         = "id"
	roleText       = "text"
	roleSkills     = "skills"
	roleExperience = "experience"
)

// schemaMeta holds parsed struct tag metadata, cached per typed handle.
type schemaMeta struct {
	typ reflect.Type

	// Field index in the struct for each role, -1 when absent.
	idIdx         int
	textIdx       int
	skillsIdx     int
	experienceIdx int
}

// profileFields is what a tagged struct contributes to a Candidate or Job.
type profileFields struct {
	id         string
	text       string
	skills     []string
	experience *int
}

// parseSchema reflects on T and extracts vecmatch struct tag metadata.
func parseSchema[T any]() (*schemaMeta, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("vecmatch: type %s is not a struct", t)
	}

	meta := &schemaMeta{typ: t, idIdx: -1, textIdx: -1, skillsIdx: -1, experienceIdx: -1}
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if err := meta.apply(i, f, tag); err != nil {
			return nil, err
		}
	}

	if meta.idIdx == -1 {
		return nil, fmt.Errorf("vecmatch: no field with `vecmatch:\"id\"` tag in %s", t)
	}
	if meta.textIdx == -1 {
		return nil, fmt.Errorf("vecmatch: no field with `vecmatch:\"text\"` tag in %s", t)
	}
	return meta, nil
}

func (m *schemaMeta) apply(idx int, f reflect.StructField, role string) error {
	var slot *int
	var ok bool
	switch role {
	case roleID:
		slot, ok = &m.idIdx, f.Type.Kind() == reflect.String
	case roleText:
		slot, ok = &m.textIdx, f.Type.Kind() == reflect.String
	case roleSkills:
		slot, ok = &m.skillsIdx, f.Type.Kind() == reflect.Slice && f.Type.Elem().Kind() == reflect.String
	case roleExperience:
		slot, ok = &m.experienceIdx, isIntKind(f.Type) ||
			(f.Type.Kind() == reflect.Pointer && isIntKind(f.Type.Elem()))
	default:
		return fmt.Errorf("vecmatch: unknown role %q on field %s", role, f.Name)
	}
	if !ok {
		return fmt.Errorf("vecmatch: field %s of type %s cannot hold %s", f.Name, f.Type, role)
	}
	if *slot != -1 {
		return fmt.Errorf("vecmatch: duplicate %s tag on field %s", role, f.Name)
	}
	*slot = idx
	return nil
}

func isIntKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

// extract reads the tagged fields of item.
func (m *schemaMeta) extract(item any) (profileFields, error) {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return profileFields{}, fmt.Errorf("vecmatch: nil %s: %w", m.typ, ErrInvalidArgument)
		}
		v = v.Elem()
	}

	p := profileFields{
		id:   v.Field(m.idIdx).String(),
		text: v.Field(m.textIdx).String(),
	}
	if m.skillsIdx != -1 {
		sv := v.Field(m.skillsIdx)
		p.skills = make([]string, sv.Len())
		for i := range sv.Len() {
			p.skills[i] = sv.Index(i).String()
		}
	}
	if m.experienceIdx != -1 {
		ev := v.Field(m.experienceIdx)
		if ev.Kind() == reflect.Pointer {
			if ev.IsNil() {
				return p, nil
			}
			ev = ev.Elem()
		}
		years := int(ev.Int())
		p.experience = &years
	}
	return p, nil
}
