package checker

import (
	"fmt"

	"sigil/pkg/parser"
	"sigil/pkg/privatename"
)

// visitClass handles one class and everything nested in it.
//
// The heritage expression is visited first, with the enclosing scopes only.
// The whole body is then collected before anything inside it is resolved,
// so a method may refer to a private name declared further down. A class
// whose body fails collection is not descended into.
func (c *Checker) visitClass(class *parser.ClassExpression) {
	c.visitExpression(class.SuperClass)

	if c.classDepth >= c.opts.MaxClassNesting {
		c.addCompileError(class.Token, fmt.Sprintf("classes nested deeper than %d levels", c.opts.MaxClassNesting))
		return
	}

	id := c.nextClassID()
	c.analysis.ClassIDs[class] = id

	c.checkConstructors(class)

	table, errs := privatename.Collect(id, c.membersOf(class))
	if len(errs) > 0 {
		for _, err := range errs {
			c.errors = append(c.errors, err)
		}
		return
	}
	c.analysis.Tables[class] = table
	debugPrintf("// [Checker] class %s (%s): %d private names\n", className(class), id, table.Len())

	release := c.stack.Enter(table)
	defer release()
	c.classDepth++
	defer func() { c.classDepth-- }()

	for _, m := range class.Body.Members {
		switch m.Kind {
		case parser.MemberConstructor:
			kind := fnBaseConstructor
			if class.SuperClass != nil {
				kind = fnDerivedConstructor
			}
			c.visitFunction(m.Value, kind)
		case parser.MemberMethod, parser.MemberGetter, parser.MemberSetter:
			c.visitFunction(m.Value, fnMethod)
		case parser.MemberField:
			c.visitInitializer(m.Initializer)
		case parser.MemberStaticBlock:
			saved := c.fn
			c.fn = fnStaticBlock
			c.visitBlock(m.Body)
			c.fn = saved
		}
	}
}

// visitInitializer walks a field initialiser, which runs like a method body
// with the instance (or class) as `this`.
func (c *Checker) visitInitializer(init parser.Expression) {
	saved := c.fn
	c.fn = fnMethod
	c.visitExpression(init)
	c.fn = saved
}

// membersOf lists the class elements the collector cares about, in order.
func (c *Checker) membersOf(class *parser.ClassExpression) []privatename.Member {
	members := make([]privatename.Member, 0, len(class.Body.Members))
	for _, m := range class.Body.Members {
		var kind privatename.MemberKind
		switch m.Kind {
		case parser.MemberField:
			kind = privatename.MemberField
		case parser.MemberMethod:
			kind = privatename.MemberMethod
		case parser.MemberGetter:
			kind = privatename.MemberGetter
		case parser.MemberSetter:
			kind = privatename.MemberSetter
		default:
			continue
		}
		key := m.Key
		tok := m.Token
		if pi, ok := key.(*parser.PrivateIdentifier); ok {
			tok = pi.Token
		}
		members = append(members, privatename.Member{
			Name:    m.KeyName(),
			Private: m.IsPrivate(),
			Kind:    kind,
			Static:  m.Static,
			Pos:     c.position(tok),
		})
	}
	return members
}

func (c *Checker) checkConstructors(class *parser.ClassExpression) {
	seen := false
	for _, m := range class.Body.Members {
		if m.Kind != parser.MemberConstructor {
			continue
		}
		if seen {
			c.addSyntaxError(m.Token, "A class may only have one constructor")
		}
		seen = true
	}
}

func className(class *parser.ClassExpression) string {
	if class.Name != nil {
		return class.Name.Value
	}
	return "<anonymous>"
}
