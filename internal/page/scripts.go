package page

import (
	"encoding/json"
	"fmt"
)

// Clickable is the selector scanned by ClickByText, in DOM order.
var Clickable = `a, button, div[role="button"], li, span`

// RootContentThreshold is the length the application root's markup must
// exceed before WaitForPageLoad considers the page rendered.
const RootContentThreshold = 100

const (
	urlScript   = `window.location.href`
	textScript  = `document.body ? document.body.innerText : ""`
	titleScript = `document.title`

	rootLengthScript = `(function() {
  var root = document.getElementById("root");
  return root ? root.innerHTML.length : 0;
})()`
)

// literal encodes s as a JavaScript string literal.
func literal(s string) string {
	b, _ := json.Marshal(s) // never fails for a string
	return string(b)
}

func existsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, literal(selector))
}

func fillScript(selector, value string) string {
	return fmt.Sprintf(`(function() {
  var el = document.querySelector(%s);
  if (!el) return false;
  el.focus();
  el.value = %s;
  el.dispatchEvent(new Event("input", {bubbles: true}));
  el.dispatchEvent(new Event("change", {bubbles: true}));
  return true;
})()`, literal(selector), literal(value))
}

func clickScript(selector string) string {
	return fmt.Sprintf(`(function() {
  var el = document.querySelector(%s);
  if (!el) return false;
  el.click();
  return true;
})()`, literal(selector))
}

func clickByTextScript(elements, text string) string {
	return fmt.Sprintf(`(function() {
  var els = document.querySelectorAll(%s);
  for (var i = 0; i < els.length; i++) {
    if (els[i].textContent.includes(%s)) {
      els[i].click();
      return true;
    }
  }
  return false;
})()`, literal(elements), literal(text))
}
