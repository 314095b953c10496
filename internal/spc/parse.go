package spc

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"spc2mqtt/internal/util"
)

// The status pages are plain HTML with no API behind them. All the panel
// guarantees in practice is a table carrying the "gridtable" class; header
// rows, column order, and the idiom used to render a state (text, icon
// with alt, icon with a colored wrapper) vary between firmware and
// language builds, sometimes between two otherwise identical pages. The
// interpreter is therefore idiom-agnostic per cell, never per page, and
// drops anything it cannot read instead of failing the fetch.

const gridTableSelector = "table.gridtable"

var areaRowPattern = regexp.MustCompile(`(?i)^Secteur\s+(\d+)\s*:\s*(.+)$`)

// cell is the resolved content of one table cell.
type cell struct {
	text  string
	color string
}

// cellValue extracts a cell's state text through the layered fallback:
// visible text, then icon alt/title, then any attribute token that the
// label guesser recognizes. The CSS color is carried separately and used
// only when everything else came up empty.
func cellValue(sel *goquery.Selection) cell {
	c := cell{color: cellColor(sel)}

	if text := util.Normalize(sel.Text()); text != "" {
		c.text = text
		return c
	}

	sel.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if alt := util.Normalize(img.AttrOr("alt", "")); alt != "" {
			c.text = alt
			return false
		}
		if title := util.Normalize(img.AttrOr("title", "")); title != "" {
			c.text = title
			return false
		}
		return true
	})
	if c.text != "" {
		return c
	}

	sel.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		for _, attr := range []string{"class", "src", "id", "name"} {
			if label := guessLabel(el.AttrOr(attr, "")); label != "" {
				c.text = label
				return false
			}
		}
		return true
	})
	return c
}

func cellColor(sel *goquery.Selection) string {
	if color := colorName(sel.Find("font[color]").AttrOr("color", "")); color != "" {
		return color
	}
	color := ""
	sel.Find("[style]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if c := styleColor(el.AttrOr("style", "")); c != "" {
			color = c
			return false
		}
		return true
	})
	if color != "" {
		return color
	}
	return styleColor(sel.AttrOr("style", ""))
}

var styleColorPattern = regexp.MustCompile(`(?i)(?:^|[^-])color\s*:\s*([^;]+)`)

func styleColor(style string) string {
	m := styleColorPattern.FindStringSubmatch(style)
	if m == nil {
		return ""
	}
	return colorName(m[1])
}

// Column roles. Headers win when present; otherwise the panel's default
// layout is assumed (zone tables: name, sector, type, ..., input, state).
type roleSpec struct {
	role string
	keys []string
}

type columns map[string]int

func detectColumns(headers []string, roles []roleSpec, defaults columns) columns {
	if len(headers) == 0 {
		return defaults
	}
	cols := columns{}
	for i, h := range headers {
		folded := foldText(h)
		if folded == "" {
			continue
		}
		for _, r := range roles {
			if _, done := cols[r.role]; done {
				continue
			}
			for _, k := range r.keys {
				if strings.Contains(folded, k) {
					cols[r.role] = i
					break
				}
			}
			if _, done := cols[r.role]; done {
				break
			}
		}
	}
	if len(cols) == 0 {
		return defaults
	}
	// Positional defaults fill roles the headers did not name, unless a
	// header already claimed that column for something else.
	used := map[int]bool{}
	for _, idx := range cols {
		used[idx] = true
	}
	for role, idx := range defaults {
		if _, ok := cols[role]; !ok && !used[idx] {
			cols[role] = idx
		}
	}
	return cols
}

// Role keyword order matters: "état entrée" must land on the input column
// before the plain "état" of the state column can claim it.
var zoneRoles = []roleSpec{
	{"input", []string{"entree", "input"}},
	{"status", []string{"etat", "status", "state"}},
	{"sector", []string{"secteur", "sector", "partition"}},
	{"name", []string{"zone", "nom", "name", "designation", "libelle"}},
}

var zoneDefaults = columns{"name": 0, "sector": 1, "input": 4, "status": 5}

var doorRoles = []roleSpec{
	{"contact", []string{"contact", "entree"}},
	{"lock", []string{"mode", "verrou", "lock", "etat", "status"}},
	{"sector", []string{"secteur", "sector"}},
	{"zone", []string{"zone"}},
	{"name", []string{"porte", "door", "nom", "name"}},
}

var doorDefaults = columns{"name": 0, "zone": 1, "sector": 2, "lock": 3, "contact": 4}

var outputRoles = []roleSpec{
	{"status", []string{"etat", "status", "state"}},
	{"name", []string{"sortie", "output", "nom", "name"}},
}

var outputDefaults = columns{"name": 0, "status": 1}

type row struct {
	cells *goquery.Selection
}

func (r row) cell(cols columns, role string) cell {
	idx, ok := cols[role]
	if !ok || idx >= r.cells.Length() {
		return cell{}
	}
	return cellValue(r.cells.Eq(idx))
}

// forEachRow walks the data rows of every gridtable in the document,
// handing the header labels (empty when the table has none) and each row
// to fn. Header rows are the ones made of th cells.
func forEachRow(doc *goquery.Document, fn func(headers []string, r row)) {
	doc.Find(gridTableSelector).Each(func(_ int, table *goquery.Selection) {
		var headers []string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			if ths := tr.Find("th"); ths.Length() > 0 {
				headers = headers[:0]
				ths.Each(func(_ int, th *goquery.Selection) {
					headers = append(headers, util.Normalize(th.Text()))
				})
				return
			}
			tds := tr.Find("td")
			if tds.Length() == 0 {
				return
			}
			fn(headers, row{cells: tds})
		})
	})
}

func parseDoc(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// goquery's net/html parser is lenient; an error here means the
		// reader failed, which cannot happen on a string. Treat as empty.
		return nil
	}
	return doc
}

// ParseZones interprets a zone status page. Rows without a usable name are
// skipped; unmapped state text yields the Unknown codes, never Normal.
func ParseZones(html string) []Zone {
	doc := parseDoc(html)
	if doc == nil {
		return nil
	}
	var zones []Zone
	forEachRow(doc, func(headers []string, r row) {
		cols := detectColumns(headers, zoneRoles, zoneDefaults)
		if r.cells.Length() <= cols["status"] {
			return
		}
		name := r.cell(cols, "name").text
		if name == "" || areaRowPattern.MatchString(name) {
			return
		}
		input := r.cell(cols, "input")
		status := r.cell(cols, "status")
		z := Zone{
			ID:         util.EntityID(name),
			Name:       name,
			Sector:     r.cell(cols, "sector").text,
			Input:      mapInputState(input.text),
			InputText:  input.text,
			Status:     mapZoneState(status.text),
			StatusText: status.text,
		}
		if z.Input == InputUnknown && input.text == "" {
			if s, ok := inputColors[input.color]; ok {
				z.Input = s
			}
		}
		if z.Status == ZoneUnknown && status.text == "" {
			if s, ok := zoneColors[status.color]; ok {
				z.Status = s
			}
		}
		zones = append(zones, z)
	})
	return zones
}

// ParseAreas interprets area (secteur) rows. The panel renders them as
// "Secteur N: Name" labels followed by a state cell, on both the home and
// controller status pages; the label may sit in any column.
func ParseAreas(html string) []Area {
	doc := parseDoc(html)
	if doc == nil {
		return nil
	}
	var areas []Area
	seen := map[string]bool{}
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		for i := 0; i < tds.Length()-1; i++ {
			label := util.Normalize(tds.Eq(i).Text())
			m := areaRowPattern.FindStringSubmatch(label)
			if m == nil {
				continue
			}
			if seen[m[1]] {
				return
			}
			state := cellValue(tds.Eq(i + 1))
			a := Area{
				ID:         m[1],
				Name:       util.Normalize(m[2]),
				Status:     mapAreaState(state.text),
				StatusText: state.text,
			}
			if a.Status == AreaUnknown && state.text == "" {
				if s, ok := areaColors[state.color]; ok {
					a.Status = s
				}
			}
			seen[a.ID] = true
			areas = append(areas, a)
			return
		}
	})
	return areas
}

// ParseDoors interprets the door status page.
func ParseDoors(html string) []Door {
	doc := parseDoc(html)
	if doc == nil {
		return nil
	}
	var doors []Door
	forEachRow(doc, func(headers []string, r row) {
		cols := detectColumns(headers, doorRoles, doorDefaults)
		if r.cells.Length() <= cols["lock"] {
			return
		}
		name := r.cell(cols, "name").text
		if name == "" {
			return
		}
		lock := r.cell(cols, "lock")
		contact := r.cell(cols, "contact")
		d := Door{
			ID:          util.EntityID(name),
			Name:        name,
			Zone:        r.cell(cols, "zone").text,
			Sector:      r.cell(cols, "sector").text,
			Lock:        mapDoorState(lock.text),
			LockText:    lock.text,
			Contact:     mapContactState(contact.text),
			ContactText: contact.text,
		}
		if d.Lock == DoorUnknown && lock.text == "" {
			if s, ok := doorColors[lock.color]; ok {
				d.Lock = s
			}
		}
		if d.Contact == ContactUnknown && contact.text == "" {
			if s, ok := contactColors[contact.color]; ok {
				d.Contact = s
			}
		}
		doors = append(doors, d)
	})
	return doors
}

// ParseOutputs interprets the output (relay) page, capturing the literal
// form fields of the row's on/off controls so the dispatcher never has to
// guess field names.
func ParseOutputs(html string) []Output {
	doc := parseDoc(html)
	if doc == nil {
		return nil
	}
	var outputs []Output
	forEachRow(doc, func(headers []string, r row) {
		cols := detectColumns(headers, outputRoles, outputDefaults)
		if r.cells.Length() <= cols["status"] {
			return
		}
		name := r.cell(cols, "name").text
		if name == "" {
			return
		}
		state := r.cell(cols, "status")
		o := Output{
			ID:        util.EntityID(name),
			Name:      name,
			StateText: state.text,
			On:        mapOutputState(state.text) == 1,
		}
		if state.text == "" && state.color == "green" {
			o.On = true
		}
		r.cells.Find("input[name], button[name]").Each(func(_ int, el *goquery.Selection) {
			field := FormField{
				Name:  el.AttrOr("name", ""),
				Value: el.AttrOr("value", ""),
			}
			label := field.Value
			if label == "" {
				label = el.Text()
			}
			switch mapOutputState(label) {
			case 1:
				if o.OnField.Name == "" {
					o.OnField = field
				}
			case 0:
				if o.OffField.Name == "" {
					o.OffField = field
				}
			}
		})
		outputs = append(outputs, o)
	})
	return outputs
}

// ParseController splits the controller info page into sections: a row
// that is all header cells (or a single spanning cell) starts a section,
// two-cell rows below it are key/value diagnostics.
func ParseController(html string) []InfoSection {
	doc := parseDoc(html)
	if doc == nil {
		return nil
	}
	var sections []InfoSection
	current := -1
	startSection := func(title string) {
		sections = append(sections, InfoSection{
			Slug:  util.Slugify(title),
			Title: title,
		})
		current = len(sections) - 1
	}
	doc.Find(gridTableSelector).Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if ths := tr.Find("th"); ths.Length() > 0 {
			if title := util.Normalize(ths.Text()); title != "" {
				startSection(title)
			}
			return
		}
		tds := tr.Find("td")
		if tds.Length() == 1 {
			if title := util.Normalize(tds.Text()); title != "" {
				startSection(title)
			}
			return
		}
		if tds.Length() < 2 {
			return
		}
		key := util.Normalize(tds.Eq(0).Text())
		if key == "" || areaRowPattern.MatchString(key) {
			return
		}
		if current < 0 {
			startSection("Controller")
		}
		sections[current].Fields = append(sections[current].Fields, InfoField{
			Key:   key,
			Value: cellValue(tds.Eq(1)).text,
		})
	})
	return sections
}
