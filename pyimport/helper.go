package pyimport

// pythonHelperScript is run under "python2 -c" or "python3 -c". It reads one
// length-prefixed source buffer per request from stdin, parses it with the
// ast module, and writes back: an error message, an error line (zero on
// success), and two string arrays — the imported module paths, and a
// comma-joined list of the names imported from each ("from" imports), empty
// for a plain "import" statement.
//
// It has to run under both Python 2 and Python 3, so it avoids anything that
// differs between the two beyond stdin/stdout buffer access.
const pythonHelperScript = `
import ast
import struct
import sys

def _stdin():
    return getattr(sys.stdin, "buffer", sys.stdin)

def _stdout():
    return getattr(sys.stdout, "buffer", sys.stdout)

def read_exact(f, n):
    data = b""
    while len(data) < n:
        chunk = f.read(n - len(data))
        if not chunk:
            raise EOFError()
        data += chunk
    return data

def read_number(f):
    return struct.unpack(">I", read_exact(f, 4))[0]

def read_string(f):
    return read_exact(f, read_number(f))

def write_number(f, n):
    f.write(struct.pack(">I", n))

def write_string(f, s):
    if not isinstance(s, bytes):
        s = s.encode("utf-8")
    write_number(f, len(s))
    f.write(s)

def write_array(f, arr):
    write_number(f, len(arr))
    for s in arr:
        write_string(f, s)

def analyze(source):
    imports = []
    attributes = []
    try:
        tree = ast.parse(source)
    except SyntaxError as e:
        return (e.msg or "syntax error", e.lineno or 1, [], [])
    except Exception as e:
        return (str(e), 1, [], [])
    for node in ast.walk(tree):
        if isinstance(node, ast.Import):
            for alias in node.names:
                imports.append(alias.name)
                attributes.append("")
        elif isinstance(node, ast.ImportFrom):
            level = node.level or 0
            mod = ("." * level) + (node.module or "")
            names = [alias.name for alias in node.names]
            imports.append(mod)
            attributes.append(",".join(names))
    return ("", 0, imports, attributes)

def main():
    inp = _stdin()
    out = _stdout()
    while True:
        try:
            raw = read_string(inp)
        except EOFError:
            return
        try:
            source = raw.decode("utf-8")
        except UnicodeDecodeError:
            source = raw.decode("latin-1")
        msg, line, imports, attributes = analyze(source)
        write_string(out, msg)
        write_number(out, line)
        write_array(out, imports)
        write_array(out, attributes)
        out.flush()

main()
`
