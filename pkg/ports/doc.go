/*
Package ports defines the interfaces between the engine core and its
external collaborators: the checkpoint store, the understanding
provider, and the distributed locker. Adapters implement them; the core
only ever depends on the contracts here.
*/
package ports
