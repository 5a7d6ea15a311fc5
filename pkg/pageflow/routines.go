// pkg/pageflow/routines.go
package pageflow

import "github.com/orginsights/insights/pkg/probe"

// Routine is a named page routine. Body is the statement list of a function
// taking a single "args" parameter; the DOM helpers below are in scope.
type Routine struct {
	Name string
	Body string
}

// Call binds args to the routine.
func (r Routine) Call(args any) probe.Call {
	return probe.Call{Name: r.Name, Script: "(args) => {\n" + domHelpers + r.Body + "\n}", Args: args}
}

// domHelpers walk the top document and every same-origin iframe, since most
// Setup pages still render their body inside a classic iframe.
const domHelpers = `
const docs = () => {
  const out = [document];
  for (const f of document.querySelectorAll('iframe')) {
    try { if (f.contentDocument) out.push(f.contentDocument); } catch (e) {}
  }
  return out;
};
const all = (sel) => docs().flatMap((d) => Array.from(d.querySelectorAll(sel)));
const clean = (s) => (s || '').replace(/\s+/g, ' ').trim();
const visible = (el) => !!(el && (el.offsetWidth || el.offsetHeight || el.getClientRects().length));
const cellText = (c) => {
  const t = clean(c.innerText || c.textContent);
  if (t) return t;
  const img = c.querySelector('img[alt], img[title]');
  if (img) return clean(img.getAttribute('alt') || img.getAttribute('title'));
  const box = c.querySelector('input[type=checkbox]');
  if (box) return box.checked ? 'Checked' : 'Not Checked';
  return '';
};
const headRow = (t) => t.querySelector('thead tr') || t.querySelector('tr');
const headerCells = (t) => {
  const row = headRow(t);
  return row ? Array.from(row.querySelectorAll('th, td')).map(cellText) : [];
};
const bodyRows = (t) => {
  const head = headRow(t);
  return Array.from(t.querySelectorAll('tr')).filter((r) => r !== head && r.querySelector('td'));
};
const headingSel = 'h1, h2, h3, h4, .slds-section__title, .pbSubheader, .slds-card__header-title';
const captionOf = (t) => {
  if (t.caption) return clean(t.caption.textContent);
  for (let n = t; n; n = n.parentElement) {
    for (let p = n.previousElementSibling; p; p = p.previousElementSibling) {
      if (p.matches(headingSel)) return clean(p.textContent);
      const inner = Array.from(p.querySelectorAll(headingSel)).pop();
      if (inner) return clean(inner.textContent);
    }
  }
  return '';
};
const findTables = (want) => all('table').filter((t) => {
  const h = headerCells(t).join(' | ').toLowerCase();
  return want.every((w) => h.includes(w.toLowerCase()));
});
`

// RoutineSearch types a term into the Setup Quick Find box.
var RoutineSearch = Routine{Name: "search", Body: `
const input = all('input.filter-box, input[placeholder="Quick Find"], input[type="search"]').find(visible);
if (!input) return { found: false };
input.focus();
const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(input), 'value');
if (desc && desc.set) desc.set.call(input, args.term); else input.value = args.term;
input.dispatchEvent(new Event('input', { bubbles: true }));
input.dispatchEvent(new KeyboardEvent('keyup', { bubbles: true, key: 'Enter' }));
return { found: true };
`}

// RoutineClickExact clicks the primary navigation target: the given selector,
// or a Setup tree link whose text or title equals the label.
var RoutineClickExact = Routine{Name: "click.exact", Body: `
const candidates = args.selector ? all(args.selector) : all('a[title], [role="treeitem"] a, .setup-tree a');
const el = candidates.find((e) => visible(e) && (args.selector || clean(e.textContent) === args.label || e.getAttribute('title') === args.label));
if (!el) return { clicked: false };
el.click();
return { clicked: true, text: clean(el.textContent) };
`}

// RoutineClickText sweeps clickable elements for matching visible text.
var RoutineClickText = Routine{Name: "click.text", Body: `
const want = clean(args.label).toLowerCase();
const items = all('a, button, [role="link"], [role="button"], [role="treeitem"], [role="menuitem"]').filter(visible);
const el = items.find((e) => clean(e.textContent).toLowerCase() === want)
  || items.find((e) => clean(e.textContent).toLowerCase().includes(want));
if (!el) return { clicked: false };
el.click();
return { clicked: true, text: clean(el.textContent) };
`}

// RoutineClickAttr is the loosest tier: any element whose title, aria-label,
// href or name contains the needle.
var RoutineClickAttr = Routine{Name: "click.attr", Body: `
const want = clean(args.attr || args.label).toLowerCase();
if (!want) return { clicked: false };
const el = all('[title], [aria-label], a[href], [name]').filter(visible).find((e) =>
  ['title', 'aria-label', 'href', 'name'].some((a) => (e.getAttribute(a) || '').toLowerCase().includes(want)));
if (!el) return { clicked: false };
el.click();
return { clicked: true, text: clean(el.textContent) };
`}

// RoutineReady reports whether a table with the header signature is present.
var RoutineReady = Routine{Name: "ready", Body: `
const tables = findTables(args.headers || []);
return { ready: tables.length > 0, rows: tables.reduce((n, t) => n + bodyRows(t).length, 0) };
`}

// RoutineTables reads every table matching the header signature.
var RoutineTables = Routine{Name: "tables", Body: `
return { tables: findTables(args.headers || []).map((t) => ({
  caption: captionOf(t),
  headers: headerCells(t),
  rows: bodyRows(t).map((r) => Array.from(r.querySelectorAll('th, td')).map(cellText)),
  links: bodyRows(t).map((r) => { const a = r.querySelector('a[href]'); return a ? a.href : ''; }),
})) };
`}

// RoutineFields reads label/value pairs from classic and Lightning detail pages.
var RoutineFields = Routine{Name: "fields", Body: `
const fields = {};
for (const label of all('td.labelCol, th.labelCol')) {
  const value = label.nextElementSibling;
  const key = clean(label.textContent);
  if (key && value && !(key in fields)) fields[key] = cellText(value);
}
for (const el of all('.slds-form-element')) {
  const l = el.querySelector('.slds-form-element__label');
  const v = el.querySelector('.slds-form-element__static, .slds-form-element__control');
  const key = l ? clean(l.textContent) : '';
  if (key && v && !(key in fields)) fields[key] = cellText(v);
}
return { fields };
`}

// RoutineText returns the text of the first visible element matching selector.
var RoutineText = Routine{Name: "text", Body: `
const el = all(args.selector).find(visible);
return { found: !!el, text: el ? clean(el.textContent) : '' };
`}

// RoutineExpand opens collapsed sections and "show more" toggles.
var RoutineExpand = Routine{Name: "expand", Body: `
const toggles = all('button[aria-expanded="false"], a[aria-expanded="false"], [role="button"][aria-expanded="false"]').filter(visible);
toggles.forEach((t) => t.click());
return { expanded: toggles.length };
`}
