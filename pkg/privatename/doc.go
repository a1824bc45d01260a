// Package privatename resolves and enforces #private class members.
//
// Compilation side: Collect turns the ordered member list of one class body
// into a sealed Table, reporting DuplicatePrivateName early errors. While a
// class tree is walked, each class's table is pushed on a ScopeStack;
// references resolve against the innermost table that declares the name,
// which gives nested classes their own #names.
//
// Run-time side: every evaluation of a class creates Brands, which are
// installed into an object's BrandSet while it is constructed. Enforce
// checks the brand on every access and decides how the access proceeds
// based on the descriptor's Kind.
package privatename
