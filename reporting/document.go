package reporting

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

const (
	elemSuite = "test-suite"
	elemCase  = "test-case"
)

// Flag is a boolean attribute written as True or False
type Flag bool

func (f Flag) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if f {
		return xml.Attr{Name: name, Value: "True"}, nil
	}
	return xml.Attr{Name: name, Value: "False"}, nil
}

func (f *Flag) UnmarshalXMLAttr(attr xml.Attr) error {
	switch attr.Value {
	case "True", "true":
		*f = true
	case "False", "false":
		*f = false
	default:
		return fmt.Errorf("invalid flag %q for %s", attr.Value, attr.Name.Local)
	}
	return nil
}

// Document is the XML report of a run
type Document struct {
	XMLName     xml.Name  `xml:"test-results"`
	Name        string    `xml:"name,attr"`
	RunID       string    `xml:"run-id,attr,omitempty"`
	Total       int       `xml:"total,attr"`
	Failures    int       `xml:"failures,attr"`
	Errors      int       `xml:"errors,attr"`
	NotRun      int       `xml:"not-run,attr"`
	Ignored     int       `xml:"ignored,attr"`
	Skipped     int       `xml:"skipped,attr"`
	NotRunnable int       `xml:"not-runnable,attr"`
	Date        string    `xml:"date,attr"`
	Time        string    `xml:"time,attr"`
	Aborted     Flag      `xml:"aborted,attr,omitempty"`
	Fatal       *Fault    `xml:"fatal,omitempty"`
	Faults      []Fault   `xml:"unhandled-exceptions>unhandled-exception,omitempty"`
	Results     []*Result `xml:"test-suite"`
}

// Fault is a fault outside any test case
type Fault struct {
	Phase      string `xml:"phase,attr"`
	Test       string `xml:"test,attr,omitempty"`
	Kind       string `xml:"kind,attr,omitempty"`
	Message    string `xml:"message"`
	StackTrace string `xml:"stack-trace,omitempty"`
}

// Counts are the aggregate attributes of a suite. They are nil on test cases,
// so case elements carry none of them while suites write every count, zeros included.
type Counts struct {
	Children    *int `xml:"children,attr,omitempty"`
	Total       *int `xml:"total,attr,omitempty"`
	Passed      *int `xml:"passed,attr,omitempty"`
	Failed      *int `xml:"failed,attr,omitempty"`
	Errors      *int `xml:"errors,attr,omitempty"`
	Ignored     *int `xml:"ignored,attr,omitempty"`
	Skipped     *int `xml:"skipped,attr,omitempty"`
	NotRunnable *int `xml:"not-runnable,attr,omitempty"`
}

// suiteCounts is Counts with absent attributes read as zero
type suiteCounts struct {
	Children, Total, Passed, Failed, Errors, Ignored, Skipped, NotRunnable int
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func (c Counts) values() suiteCounts {
	return suiteCounts{
		Children:    deref(c.Children),
		Total:       deref(c.Total),
		Passed:      deref(c.Passed),
		Failed:      deref(c.Failed),
		Errors:      deref(c.Errors),
		Ignored:     deref(c.Ignored),
		Skipped:     deref(c.Skipped),
		NotRunnable: deref(c.NotRunnable),
	}
}

// HasCounts reports whether any suite count attribute is present
func (c Counts) HasCounts() bool {
	return c.Children != nil || c.Total != nil || c.Passed != nil || c.Failed != nil ||
		c.Errors != nil || c.Ignored != nil || c.Skipped != nil || c.NotRunnable != nil
}

// Result is a test-suite or test-case element, told apart by XMLName
type Result struct {
	XMLName     xml.Name
	Name        string `xml:"name,attr"`
	Description string `xml:"description,attr,omitempty"`
	Executed    Flag   `xml:"executed,attr"`
	Status      string `xml:"result,attr"`
	Success     Flag   `xml:"success,attr"`
	Time        string `xml:"time,attr"`
	Asserts     int    `xml:"asserts,attr"`
	Counts

	Categories []Category `xml:"categories>category,omitempty"`
	Properties []Property `xml:"properties>property,omitempty"`
	Reason     *Reason    `xml:"reason,omitempty"`
	Failure    *Failure   `xml:"failure,omitempty"`
	Children   *Children  `xml:"results,omitempty"`
}

type Children struct {
	Items []*Result `xml:",any"`
}

type Category struct {
	Name string `xml:"name,attr"`
}

type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type Reason struct {
	Message string `xml:"message"`
}

type Failure struct {
	Message    string `xml:"message"`
	StackTrace string `xml:"stack-trace,omitempty"`
	Note       string `xml:"note,omitempty"`
}

func (r *Result) IsSuite() bool {
	return r.XMLName.Local == elemSuite
}

func (r *Result) Items() []*Result {
	if r.Children == nil {
		return nil
	}
	return r.Children.Items
}

// clean removes terminal escape sequences from report text
func clean(s string) string {
	return stripansi.Strip(s)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// NewDocument renders a result tree. The same tree always renders the same
// document.
func NewDocument(tree *ResultTree) *Document {
	rollup := tree.Rollup()
	start := tree.Start.UTC()
	doc := &Document{
		Name:        tree.Name,
		RunID:       tree.RunID,
		Total:       rollup.Total,
		Failures:    rollup.Failed,
		Errors:      rollup.Errors,
		NotRun:      rollup.NotRun(),
		Ignored:     rollup.Ignored,
		Skipped:     rollup.Skipped,
		NotRunnable: rollup.NotRunnable,
		Date:        start.Format(time.DateOnly),
		Time:        start.Format(time.TimeOnly),
		Aborted:     Flag(tree.IsFatal()),
	}
	if tree.Fatal != nil {
		f := newFault(*tree.Fatal)
		doc.Fatal = &f
	}
	for _, f := range tree.Faults {
		doc.Faults = append(doc.Faults, newFault(f))
	}
	for _, root := range tree.Roots {
		doc.Results = append(doc.Results, newResult(root))
	}
	return doc
}

func newFault(f types.Fault) Fault {
	return Fault{
		Phase:      string(f.Phase),
		Test:       f.Test,
		Kind:       f.Kind,
		Message:    clean(f.Message),
		StackTrace: clean(f.StackTrace),
	}
}

func newResult(n *ResultNode) *Result {
	status := n.Status()
	r := &Result{
		Name:        n.FullName,
		Description: n.Description,
		Executed:    Flag(n.Executed()),
		Status:      string(status),
		Success:     Flag(!status.IsFailure()),
		Time:        seconds(n.Duration()),
	}
	for _, c := range n.Categories {
		r.Categories = append(r.Categories, Category{Name: c})
	}
	for _, p := range n.Properties {
		r.Properties = append(r.Properties, Property{Name: p.Name, Value: p.Value})
	}

	if !n.IsSuite {
		r.XMLName = xml.Name{Local: elemCase}
		r.Asserts = n.Outcome.Asserts
		switch {
		case n.Outcome.IsFailure():
			r.Failure = &Failure{
				Message:    clean(n.Outcome.Message),
				StackTrace: clean(n.Outcome.StackTrace),
				Note:       clean(n.Outcome.Note),
			}
		case !n.Outcome.Executed():
			r.Reason = &Reason{Message: clean(n.Outcome.Message)}
		}
		return r
	}

	r.XMLName = xml.Name{Local: elemSuite}
	r.Name = n.Name
	r.Asserts = n.Rollup.Asserts
	r.Counts = countsOf(n.Rollup, len(n.Children))
	if len(n.Children) > 0 {
		r.Children = &Children{}
		for _, c := range n.Children {
			r.Children.Items = append(r.Children.Items, newResult(c))
		}
	}
	return r
}

func intPtr(v int) *int {
	return &v
}

func countsOf(r types.Rollup, children int) Counts {
	return Counts{
		Children:    intPtr(children),
		Total:       intPtr(r.Total),
		Passed:      intPtr(r.Passed),
		Failed:      intPtr(r.Failed),
		Errors:      intPtr(r.Errors),
		Ignored:     intPtr(r.Ignored),
		Skipped:     intPtr(r.Skipped),
		NotRunnable: intPtr(r.NotRunnable),
	}
}

// Serialize renders tree as an indented XML document
func Serialize(tree *ResultTree) ([]byte, error) {
	return NewDocument(tree).Marshal()
}

func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Parse reads a document written by Serialize
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &doc, nil
}

// Verify recomputes every suite's counts from the cases below it and checks
// them against the stored counts, and the document totals against the top
// level suites
func (d *Document) Verify() error {
	var errs []error
	var total types.Rollup
	for _, r := range d.Results {
		rollup, err := verify(r)
		if err != nil {
			errs = append(errs, err)
		}
		total.Merge(rollup)
	}
	want := totalsOf(total)
	got := totals{d.Total, d.Failures, d.Errors, d.NotRun, d.Ignored, d.Skipped, d.NotRunnable}
	if want != got {
		errs = append(errs, fmt.Errorf("document totals %+v, cases sum to %+v", got, want))
	}
	return errors.Join(errs...)
}

type totals struct {
	Total, Failures, Errors, NotRun, Ignored, Skipped, NotRunnable int
}

func totalsOf(r types.Rollup) totals {
	return totals{r.Total, r.Failed, r.Errors, r.NotRun(), r.Ignored, r.Skipped, r.NotRunnable}
}

// verify returns the rollup recomputed from the cases at or below r
func verify(r *Result) (types.Rollup, error) {
	var rollup types.Rollup
	if !r.IsSuite() {
		if r.HasCounts() {
			return rollup, fmt.Errorf("case %s carries suite counts", r.Name)
		}
		status := types.TestStatus(r.Status)
		if !status.Valid() {
			return rollup, fmt.Errorf("case %s has unknown result %q", r.Name, r.Status)
		}
		rollup.Add(types.Outcome{Status: status, Asserts: r.Asserts})
		return rollup, nil
	}
	var errs []error
	for _, c := range r.Items() {
		sub, err := verify(c)
		if err != nil {
			errs = append(errs, err)
		}
		rollup.Merge(sub)
	}
	stored := r.Counts.values()
	if want := countsOf(rollup, len(r.Items())).values(); want != stored {
		errs = append(errs, fmt.Errorf("suite %s stores %+v, cases sum to %+v", r.Name, stored, want))
	}
	if r.Asserts != rollup.Asserts {
		errs = append(errs, fmt.Errorf("suite %s stores %d asserts, cases sum to %d", r.Name, r.Asserts, rollup.Asserts))
	}
	return rollup, errors.Join(errs...)
}

// Cases returns every test-case element in document order
func (d *Document) Cases() []*Result {
	var out []*Result
	var walk func(rs []*Result)
	walk = func(rs []*Result) {
		for _, r := range rs {
			if r.IsSuite() {
				walk(r.Items())
			} else {
				out = append(out, r)
			}
		}
	}
	walk(d.Results)
	return out
}

// FailedCases returns the cases with a failure element
func (d *Document) FailedCases() []*Result {
	var out []*Result
	for _, c := range d.Cases() {
		if c.Failure != nil {
			out = append(out, c)
		}
	}
	return out
}

// NotRunCases returns the cases with a reason element
func (d *Document) NotRunCases() []*Result {
	var out []*Result
	for _, c := range d.Cases() {
		if c.Reason != nil {
			out = append(out, c)
		}
	}
	return out
}

// Run is the number of executed cases
func (d *Document) Run() int {
	return d.Total - d.NotRun
}

// Seconds is the summed time of the top level suites
func (d *Document) Seconds() string {
	var total float64
	for _, r := range d.Results {
		if s, err := strconv.ParseFloat(r.Time, 64); err == nil {
			total += s
		}
	}
	return strconv.FormatFloat(total, 'f', 3, 64)
}
