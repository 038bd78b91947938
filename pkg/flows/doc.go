/*
Package flows holds the declarative flow definition format and the step
graph compiler.

A flow is an ordered list of typed step definitions. Compilation turns
that list into an executable node graph: implicit edges connect each
step to its successor, while loops get body and exit edges, branches get
a case map, and an implicit terminal end node closes every flow. All
structural validation happens here, at compile time; the runtime never
sees an unresolved target or a step missing a required field.
*/
package flows
