package reconcile

import (
	"sort"
	"strings"

	"fab-recon/internal/storage"
)

// Виды полей субъекта (SubjectFieldID в timerecordsubjectfieldmappings).
// Значения взяты из реальных данных, справочной таблицы в схеме нет.
const (
	FieldKindSequenceLot = 1
	FieldKindMainMark    = 2
	FieldKindPieceMark   = 32
	FieldKindNote        = 128
)

// ResolvedCoordinate — расшифрованный субъект времени: на что было потрачено
// время. Любое подмножество полей может отсутствовать. Поле, у которого в
// данных нашлось несколько разных значений одного вида, остаётся пустым, а
// вид попадает в AmbiguousKinds — выбирать одно из значений молча нельзя.
type ResolvedCoordinate struct {
	SequenceLot string
	MainMark    string
	PieceMark   string
	Note        string

	// Неизвестные виды полей сохраняем как есть: часы не должны пропадать
	// только потому, что мы не знаем смысла тега.
	Unclassified map[int][]string

	AmbiguousKinds []int
}

func (c ResolvedCoordinate) Empty() bool {
	return c.SequenceLot == "" && c.MainMark == "" && c.PieceMark == "" &&
		c.Note == "" && len(c.Unclassified) == 0 && len(c.AmbiguousKinds) == 0
}

func (c ResolvedCoordinate) Ambiguous() bool {
	return len(c.AmbiguousKinds) > 0
}

func (c ResolvedCoordinate) kindAmbiguous(kind int) bool {
	for _, k := range c.AmbiguousKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// SubjectResolver — чистое отображение субъект -> координата. Субъекты
// неизменяемы, координаты считаются один раз при построении; Resolve после
// этого только читает, поэтому безопасен для параллельных воркеров.
type SubjectResolver struct {
	memo map[int64]ResolvedCoordinate
}

func NewSubjectResolver(mappings []storage.SubjectFieldMapping) *SubjectResolver {
	fields := make(map[int64]map[int][]string)
	for _, m := range mappings {
		byKind := fields[m.SubjectID]
		if byKind == nil {
			byKind = make(map[int][]string)
			fields[m.SubjectID] = byKind
		}
		byKind[m.FieldKind] = append(byKind[m.FieldKind], m.Value)
	}

	memo := make(map[int64]ResolvedCoordinate, len(fields))
	for subjectID, byKind := range fields {
		memo[subjectID] = resolveFields(byKind)
	}
	return &SubjectResolver{memo: memo}
}

// Resolve возвращает координату субъекта. nil — время ни к чему не привязано,
// это не ошибка: возвращается пустая координата.
func (r *SubjectResolver) Resolve(subjectID *int64) ResolvedCoordinate {
	if subjectID == nil {
		return ResolvedCoordinate{}
	}
	return r.memo[*subjectID]
}

func resolveFields(byKind map[int][]string) ResolvedCoordinate {
	coord := ResolvedCoordinate{}

	kinds := make([]int, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Ints(kinds)

	for _, kind := range kinds {
		values := distinctNormalized(byKind[kind])
		if len(values) == 0 {
			continue
		}
		if len(values) > 1 {
			// Конфликт значений одного вида — аномалия данных.
			coord.AmbiguousKinds = append(coord.AmbiguousKinds, kind)
			continue
		}
		switch kind {
		case FieldKindSequenceLot:
			coord.SequenceLot = values[0]
		case FieldKindMainMark:
			coord.MainMark = values[0]
		case FieldKindPieceMark:
			coord.PieceMark = values[0]
		case FieldKindNote:
			coord.Note = values[0]
		default:
			if coord.Unclassified == nil {
				coord.Unclassified = make(map[int][]string)
			}
			coord.Unclassified[kind] = values
		}
	}

	return coord
}

// distinctNormalized нормализует значения и убирает дубликаты с сохранением
// порядка. Два текстуально разных написания одного и того же — не конфликт.
func distinctNormalized(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		n := normalizeFieldText(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// normalizeFieldText: trim, нижний регистр, вырезание управляющих байтов.
// В SubjectFieldValue и марках встречаются залётные \x01 — до сравнения
// их надо убрать.
func normalizeFieldText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(strings.TrimSpace(b.String()))
}
