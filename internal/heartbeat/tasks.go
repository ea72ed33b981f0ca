package heartbeat

import (
	"fmt"
	"regexp"
	"strings"
)

// Task is one list item parsed from a heartbeat task file.
type Task struct {
	LineNumber int // 1-based
	Text       string
	Completed  bool
}

var (
	headingRe  = regexp.MustCompile(`^#+\s`)
	checkboxRe = regexp.MustCompile(`^-\s*\[([ xX])\]\s*(.*)$`)
	listItemRe = regexp.MustCompile(`^-\s*(.*)$`)
)

// ParseTasks reads a heartbeat task file's lines as a flat list.
// Blank lines and markdown headings are ignored. A line of the form
// "- [ ] text" or "- [x] text" (case-insensitive) is a checkbox task;
// any other "- text" line is an incomplete task with no checkbox.
func ParseTasks(content string) []Task {
	var tasks []Task
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || headingRe.MatchString(trimmed) {
			continue
		}
		lineNo := i + 1
		if m := checkboxRe.FindStringSubmatch(trimmed); m != nil {
			tasks = append(tasks, Task{
				LineNumber: lineNo,
				Text:       strings.TrimSpace(m[2]),
				Completed:  strings.EqualFold(m[1], "x"),
			})
			continue
		}
		if m := listItemRe.FindStringSubmatch(trimmed); m != nil {
			tasks = append(tasks, Task{LineNumber: lineNo, Text: strings.TrimSpace(m[1])})
		}
	}
	return tasks
}

// IncompleteTasks filters tasks down to the ones still pending.
func IncompleteTasks(tasks []Task) []Task {
	var pending []Task
	for _, t := range tasks {
		if !t.Completed {
			pending = append(pending, t)
		}
	}
	return pending
}

// MarkComplete rewrites the checkbox on the given 1-based line to
// "[x]", leaving every other line untouched. It returns an error if
// lineNumber is out of range or the line has no checkbox to mark.
func MarkComplete(content string, lineNumber int) (string, error) {
	lines := strings.Split(content, "\n")
	if lineNumber < 1 || lineNumber > len(lines) {
		return content, fmt.Errorf("heartbeat: line %d out of range (file has %d lines)", lineNumber, len(lines))
	}
	idx := lineNumber - 1
	if !checkboxRe.MatchString(strings.TrimSpace(lines[idx])) {
		return content, fmt.Errorf("heartbeat: line %d has no checkbox", lineNumber)
	}
	replaced := strings.Replace(lines[idx], "[ ]", "[x]", 1)
	if replaced == lines[idx] {
		replaced = strings.Replace(lines[idx], "[X]", "[x]", 1)
	}
	lines[idx] = replaced
	return strings.Join(lines, "\n"), nil
}
