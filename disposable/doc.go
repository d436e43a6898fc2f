// Package disposable provides handles for releasing resources
// deterministically.
//
// A Disposable wraps a release action that runs at most once. A Composite
// groups any number of values implementing Disposer so they can be released
// together, which is the usual way to tear down a set of event subscriptions:
//
//	type Panel struct {
//	    subs *disposable.Composite
//	}
//
//	func NewPanel(doc *Document) (*Panel, error) {
//	    p := &Panel{subs: disposable.NewComposite()}
//	    sub, err := doc.OnDidChange(p.refresh)
//	    if err != nil {
//	        return nil, err
//	    }
//	    p.subs.Add(sub)
//	    return p, nil
//	}
//
//	func (p *Panel) Destroy() {
//	    p.subs.Dispose()
//	}
//
// Dispose is idempotent on every type in this package. Panics raised by a
// release action are not recovered; they reach the caller of Dispose.
//
// # Thread Safety
//
// Disposable and Composite are safe for concurrent use. No lock is held while
// a release action or member Dispose runs, so actions may freely add to or
// dispose other handles.
package disposable
